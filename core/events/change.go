package events

import "time"

// ChangeKind tags a realtime change pushed by the store.
type ChangeKind int

const (
	ChangeInsert ChangeKind = iota
	ChangeUpdate
	ChangeDelete
)

// String returns the lowercase name of the kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	}
	return "unknown"
}

// ChangeEvent is a tagged realtime change for one record. Consumers must
// apply last-write-wins on Timestamp, never on arrival order: pushes can be
// delivered out of order relative to direct reads.
type ChangeEvent struct {
	Kind     ChangeKind
	Table    string
	RecordID string
	// Record holds the written row when the producer has it in hand. It may
	// be nil; consumers then re-read by RecordID.
	Record    any
	Timestamp time.Time
}
