package domain

import "github.com/google/uuid"

// InvariantCheck records a single invariant validation.
type InvariantCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// AuditReport is the outcome of replaying a player's completion records
// against the stored player row.
type AuditReport struct {
	PlayerID    uuid.UUID        `json:"player_id"`
	RecordCount int              `json:"record_count"`
	Invariants  []InvariantCheck `json:"invariants"`
	AllPassed   bool             `json:"all_passed"`
}
