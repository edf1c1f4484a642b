package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a document, run or snapshot does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExists is returned when creating a record whose id is taken.
	ErrExists = errors.New("already exists")

	// ErrRunTerminal is returned when mutating a run in a terminal state.
	ErrRunTerminal = errors.New("run is terminal")

	// ErrStaleBody is returned by CommitStep when the document body changed
	// after the step read it.
	ErrStaleBody = errors.New("document body changed concurrently")
)

// ActiveRunError reports that a document already has a non-terminal run.
type ActiveRunError struct {
	DocumentID string
	RunID      string
}

func (e *ActiveRunError) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("document %s has an active run", e.DocumentID)
	}
	return fmt.Sprintf("document %s has active run %s", e.DocumentID, e.RunID)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
