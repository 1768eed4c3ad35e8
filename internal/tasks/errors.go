package tasks

import "fmt"

// SyncError records the state in which a sync run failed.
type SyncError struct {
	State State
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed while %s: %v", e.State, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
