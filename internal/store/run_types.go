package store

import (
	"database/sql"
	"time"
)

// PRNodeRecord is the persisted form of an orchestrator queue entry. The
// slice fields are stored JSON-encoded since SQLite has no native array
// type and the queue is read back wholesale, never queried by member.
type PRNodeRecord struct {
	PRNumber      int
	Branch        string
	Base          string
	ChangedFiles  []string
	DependsOn     []int
	ConflictsWith []int
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IterationRecord is one fix-loop iteration's outcome for a given PR,
// recorded so a crashed run can be inspected without re-deriving state
// from the host's API.
type IterationRecord struct {
	ID         int64
	PRNumber   int
	Iteration  int
	Stage      string
	Result     string
	Detail     string
	RecordedAt time.Time
}

// RunStats summarizes the current state of a run for status reporting.
type RunStats struct {
	TotalPRs     int
	ByStatus     map[string]int
	TotalRecords int
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}

	return sql.NullString{String: s, Valid: true}
}

func fromNullString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}

	return s.String
}
