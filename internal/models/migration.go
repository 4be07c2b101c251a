package models

import "time"

// MigrationStatus is the externally visible status of a MigrationRecord.
type MigrationStatus string

const (
	MigrationPending   MigrationStatus = "PENDING"
	MigrationEnqueued  MigrationStatus = "ENQUEUED"
	MigrationVerifying MigrationStatus = "VERIFYING"
	MigrationVerified  MigrationStatus = "VERIFIED"
	MigrationFailed    MigrationStatus = "FAILED"
)

// Terminal reports whether no further transition can happen.
func (s MigrationStatus) Terminal() bool {
	return s == MigrationVerified || s == MigrationFailed
}

// AttachmentPoint names the switch and port a host hangs off.
type AttachmentPoint struct {
	Switch string `json:"switch"`
	Port   string `json:"port"`
}

// MigrationRecord tracks the single remediation a controller performs.
type MigrationRecord struct {
	ID          string          `json:"id"`
	Host        string          `json:"host"`
	Destination string          `json:"destination"`
	PacketCount int             `json:"packet_count"`
	From        AttachmentPoint `json:"from"`
	To          AttachmentPoint `json:"to"`
	Status      MigrationStatus `json:"status"`
	Plan        []string        `json:"plan,omitempty"`
	TriggeredAt time.Time       `json:"triggered_at"`
	VerifiedAt  time.Time       `json:"verified_at,omitempty"`
	Diagnostic  string          `json:"diagnostic,omitempty"`
}
