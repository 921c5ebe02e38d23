package models

import "time"

// CertificateRecord represents an issued CV certificate
type CertificateRecord struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	SerialNumber uint64    `json:"serial_number"`
	Holder       string    `json:"holder"`
	Authority    string    `json:"authority"`
	Level        int       `json:"level"` // 128, 192 or 256
	PublicKeyFP  string    `json:"public_key_fp"`
	CertDER      string    `json:"cert_der"` // hex-encoded certificate
	ValidFrom    string    `json:"valid_from"` // YYMMDD
	ValidTo      string    `json:"valid_to"`   // YYMMDD
	ClientIP     string    `json:"client_ip"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
}
