package model

import "time"

// Collection names shared by every backend.
const (
	CollectionReports = "reports"
	CollectionUsers   = "users"
)

// ChangeOp is the kind of mutation a backend observed.
type ChangeOp string

const (
	OpSet    ChangeOp = "set"
	OpDelete ChangeOp = "delete"
	OpReset  ChangeOp = "reset" // whole collection replaced
)

// Change is a push notification emitted by a backend after a write commits.
type Change struct {
	Collection string    `json:"collection"`
	Op         ChangeOp  `json:"op"`
	ID         string    `json:"id,omitempty"`
	At         time.Time `json:"at"`
}
