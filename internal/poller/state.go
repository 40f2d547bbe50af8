package poller

import "time"

// State is the lifecycle phase of a polled view
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateRefreshing
	StateError
	StateUnauthenticated
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateLoading:         "loading",
	StateReady:           "ready",
	StateRefreshing:      "refreshing",
	StateError:           "error",
	StateUnauthenticated: "unauthenticated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is the observable state of a view. Data is the last good value
// and survives background failures.
type Snapshot[T any] struct {
	View      string
	State     State
	Data      T
	HasData   bool
	Err       error
	UpdatedAt time.Time
	// Initial is true while the current or last cycle ran in initial mode
	Initial bool
}

// Loading reports whether a user-visible loading indicator is due
func (s Snapshot[T]) Loading() bool {
	return s.State == StateLoading
}
