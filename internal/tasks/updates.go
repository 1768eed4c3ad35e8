package tasks

import (
	"fmt"
	"strings"
)

// ProgressUpdate represents a progress event during a sync or population run.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	State   State  // Orchestrator state the run is in
	Step    int    // Current step number within the state
	Total   int    // Total steps in this state
	Message string // Human-readable message for display
	Data    any    // Optional state-specific data, e.g. a *SyncResult on Done
}

// State is a step of the sync state machine.
type State int

const (
	Fetching State = iota
	Transforming
	Persisting
	PushingRemote
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Transforming:
		return "transforming"
	case Persisting:
		return "persisting"
	case PushingRemote:
		return "pushing_remote"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchingUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		State:   Fetching,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching tracks of %s...", name),
	}
}

func transformingUpdate(stages []string, count int) ProgressUpdate {
	return ProgressUpdate{
		State:   Transforming,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Running %d tracks through [%s]...", count, strings.Join(stages, ", ")),
	}
}

func persistingUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		State:   Persisting,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Persisting %d tracks...", count),
	}
}

func pushingUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		State:   PushingRemote,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Queueing push of %d tracks...", count),
	}
}

func doneUpdate(result *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		State:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Synced %d of %d tracks", result.Persisted, result.Fetched),
		Data:    result,
	}
}

func failedUpdate(err *SyncError) ProgressUpdate {
	return ProgressUpdate{
		State:   Failed,
		Step:    1,
		Total:   1,
		Message: err.Error(),
		Data:    err,
	}
}

func pageUpdate(kind Kind, page, items int) ProgressUpdate {
	return ProgressUpdate{
		State:   Persisting,
		Step:    page,
		Total:   0,
		Message: fmt.Sprintf("[%s] page %d: %d items", kind, page, items),
	}
}
