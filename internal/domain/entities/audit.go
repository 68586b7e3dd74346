package entities

import "time"

// Audit actions written by the graph engine.
const (
	ActionPersonCreate       = "person.create"
	ActionPersonUpdate       = "person.update"
	ActionPersonDelete       = "person.delete"
	ActionRelationshipCreate = "relationship.create"
	ActionRelationshipDelete = "relationship.delete"
)

// AuditEntry represents a logged action in the system.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	SubjectID string         `json:"subject_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
