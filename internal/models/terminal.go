package models

import "time"

// Terminal represents a registered card-access terminal that trusts the
// authority's root certificate
type Terminal struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"` // CV-certificate holder name
	Description  string    `json:"description,omitempty"`
	Location     string    `json:"location,omitempty"`
	EIDAccess    string    `json:"eid_access,omitempty"`   // hex, 5 bytes
	ESignAccess  string    `json:"esign_access,omitempty"` // hex, 2 bytes
	Labels       string    `json:"labels,omitempty"`       // JSON array
	RootTrusted  bool      `json:"root_trusted"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}
