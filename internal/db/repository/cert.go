package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/adamscao/cvca/internal/models"
)

// CertRepository handles certificate record data access
type CertRepository struct {
	db *sql.DB
}

// NewCertRepository creates a new certificate repository
func NewCertRepository(db *sql.DB) *CertRepository {
	return &CertRepository{db: db}
}

// Create creates a new certificate record
func (r *CertRepository) Create(cert *models.CertificateRecord) error {
	query := `
		INSERT INTO certificates (
			user_id, serial_number, holder, authority, level,
			public_key_fp, cert_der, valid_from, valid_to, client_ip, user_agent
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		cert.UserID,
		cert.SerialNumber,
		cert.Holder,
		cert.Authority,
		cert.Level,
		cert.PublicKeyFP,
		cert.CertDER,
		cert.ValidFrom,
		cert.ValidTo,
		cert.ClientIP,
		cert.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to create certificate record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	cert.ID = id
	cert.IssuedAt = time.Now()

	return nil
}

const certColumns = `id, user_id, serial_number, holder, authority, level,
	       public_key_fp, cert_der, valid_from, valid_to, client_ip, user_agent, issued_at`

func scanCert(row interface{ Scan(...any) error }) (*models.CertificateRecord, error) {
	cert := &models.CertificateRecord{}
	err := row.Scan(
		&cert.ID,
		&cert.UserID,
		&cert.SerialNumber,
		&cert.Holder,
		&cert.Authority,
		&cert.Level,
		&cert.PublicKeyFP,
		&cert.CertDER,
		&cert.ValidFrom,
		&cert.ValidTo,
		&cert.ClientIP,
		&cert.UserAgent,
		&cert.IssuedAt,
	)
	if err != nil {
		return nil, err
	}
	return cert, nil
}

// GetBySerialNumber retrieves a certificate by serial number
func (r *CertRepository) GetBySerialNumber(serial uint64) (*models.CertificateRecord, error) {
	query := `SELECT ` + certColumns + ` FROM certificates WHERE serial_number = ?`

	cert, err := scanCert(r.db.QueryRow(query, serial))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("certificate not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	return cert, nil
}

// GetByHolder retrieves the most recently issued certificate for a holder
func (r *CertRepository) GetByHolder(holder string) (*models.CertificateRecord, error) {
	query := `SELECT ` + certColumns + `
		FROM certificates
		WHERE holder = ?
		ORDER BY issued_at DESC
		LIMIT 1`

	cert, err := scanCert(r.db.QueryRow(query, holder))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("certificate not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	return cert, nil
}

// GetLatestByFingerprint retrieves the most recently issued certificate for
// a public key fingerprint
func (r *CertRepository) GetLatestByFingerprint(fp string) (*models.CertificateRecord, error) {
	query := `SELECT ` + certColumns + `
		FROM certificates
		WHERE public_key_fp = ?
		ORDER BY issued_at DESC
		LIMIT 1`

	cert, err := scanCert(r.db.QueryRow(query, fp))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("certificate not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	return cert, nil
}

// GetUserCertCountToday returns the number of certificates issued to a user today
func (r *CertRepository) GetUserCertCountToday(userID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM certificates
		WHERE user_id = ? AND DATE(issued_at) = DATE('now')
	`

	var count int
	err := r.db.QueryRow(query, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get cert count: %w", err)
	}

	return count, nil
}

// GetNextSerialNumber returns the next available serial number
func (r *CertRepository) GetNextSerialNumber() (uint64, error) {
	query := `
		SELECT COALESCE(MAX(serial_number), 0) + 1
		FROM certificates
	`

	var serial uint64
	err := r.db.QueryRow(query).Scan(&serial)
	if err != nil {
		return 0, fmt.Errorf("failed to get next serial number: %w", err)
	}

	return serial, nil
}

// ListByUserID lists certificates issued to a user, newest first
func (r *CertRepository) ListByUserID(userID int64, limit int) ([]*models.CertificateRecord, error) {
	query := `SELECT ` + certColumns + `
		FROM certificates
		WHERE user_id = ?
		ORDER BY issued_at DESC
		LIMIT ?`

	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	var certs []*models.CertificateRecord

	for rows.Next() {
		cert, err := scanCert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}

	return certs, nil
}

// List lists all certificates, newest first
func (r *CertRepository) List(limit int) ([]*models.CertificateRecord, error) {
	query := `SELECT ` + certColumns + `
		FROM certificates
		ORDER BY issued_at DESC
		LIMIT ?`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	var certs []*models.CertificateRecord

	for rows.Next() {
		cert, err := scanCert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}

	return certs, nil
}

// ListExpiringBefore lists certificates whose end date falls before the given
// YYMMDD date, newest expiry first. Validity dates are stored as YYMMDD
// strings, which sort in calendar order.
func (r *CertRepository) ListExpiringBefore(date string) ([]*models.CertificateRecord, error) {
	query := `SELECT ` + certColumns + `
		FROM certificates
		WHERE valid_to < ?
		ORDER BY valid_to DESC`

	rows, err := r.db.Query(query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring certificates: %w", err)
	}
	defer rows.Close()

	var certs []*models.CertificateRecord

	for rows.Next() {
		cert, err := scanCert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}

	return certs, nil
}
