package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/adamscao/cvca/internal/models"
)

// TerminalRepository handles registered terminal data access
type TerminalRepository struct {
	db *sql.DB
}

// NewTerminalRepository creates a new terminal repository
func NewTerminalRepository(db *sql.DB) *TerminalRepository {
	return &TerminalRepository{db: db}
}

// Create creates a new terminal record
func (r *TerminalRepository) Create(term *models.Terminal) error {
	query := `
		INSERT INTO terminals (
			name, description, location, eid_access, esign_access, labels, root_trusted
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	rootTrusted := 0
	if term.RootTrusted {
		rootTrusted = 1
	}

	result, err := r.db.Exec(query,
		term.Name,
		term.Description,
		term.Location,
		term.EIDAccess,
		term.ESignAccess,
		term.Labels,
		rootTrusted,
	)
	if err != nil {
		return fmt.Errorf("failed to create terminal: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	term.ID = id
	term.RegisteredAt = time.Now()
	term.LastSeenAt = time.Now()

	return nil
}

// GetByName retrieves a terminal by name
func (r *TerminalRepository) GetByName(name string) (*models.Terminal, error) {
	query := `
		SELECT id, name, description, location, eid_access, esign_access,
		       labels, root_trusted, registered_at, last_seen_at
		FROM terminals
		WHERE name = ?
	`

	term := &models.Terminal{}
	var rootTrusted int

	err := r.db.QueryRow(query, name).Scan(
		&term.ID,
		&term.Name,
		&term.Description,
		&term.Location,
		&term.EIDAccess,
		&term.ESignAccess,
		&term.Labels,
		&rootTrusted,
		&term.RegisteredAt,
		&term.LastSeenAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("terminal not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get terminal: %w", err)
	}

	term.RootTrusted = rootTrusted == 1

	return term, nil
}

// UpdateOrCreate updates an existing terminal or creates a new one
func (r *TerminalRepository) UpdateOrCreate(term *models.Terminal) error {
	existing, err := r.GetByName(term.Name)
	if err != nil && err.Error() != "terminal not found" {
		return err
	}

	if existing != nil {
		return r.Update(existing.ID, term)
	}

	return r.Create(term)
}

// Update updates a terminal record
func (r *TerminalRepository) Update(id int64, term *models.Terminal) error {
	query := `
		UPDATE terminals
		SET description = ?, location = ?, eid_access = ?, esign_access = ?,
		    labels = ?, root_trusted = ?, last_seen_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	rootTrusted := 0
	if term.RootTrusted {
		rootTrusted = 1
	}

	_, err := r.db.Exec(query,
		term.Description,
		term.Location,
		term.EIDAccess,
		term.ESignAccess,
		term.Labels,
		rootTrusted,
		id,
	)

	if err != nil {
		return fmt.Errorf("failed to update terminal: %w", err)
	}

	return nil
}

// List lists all registered terminals
func (r *TerminalRepository) List(limit int) ([]*models.Terminal, error) {
	query := `
		SELECT id, name, description, location, eid_access, esign_access,
		       labels, root_trusted, registered_at, last_seen_at
		FROM terminals
		ORDER BY registered_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminals: %w", err)
	}
	defer rows.Close()

	var terms []*models.Terminal

	for rows.Next() {
		term := &models.Terminal{}
		var rootTrusted int

		err := rows.Scan(
			&term.ID,
			&term.Name,
			&term.Description,
			&term.Location,
			&term.EIDAccess,
			&term.ESignAccess,
			&term.Labels,
			&rootTrusted,
			&term.RegisteredAt,
			&term.LastSeenAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan terminal: %w", err)
		}

		term.RootTrusted = rootTrusted == 1
		terms = append(terms, term)
	}

	return terms, nil
}

// Delete deletes a terminal
func (r *TerminalRepository) Delete(id int64) error {
	query := `DELETE FROM terminals WHERE id = ?`

	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete terminal: %w", err)
	}

	return nil
}
