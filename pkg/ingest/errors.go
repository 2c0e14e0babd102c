package ingest

import "fmt"

// PersistenceError reports that a resolved record could not be written. It ends
// the run.
type PersistenceError struct {
	Identifier string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist video %s: %v", e.Identifier, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
