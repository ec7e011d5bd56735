package orchestrator

import "fmt"

// State of a run. A run moves forward only; Aborted is terminal for fatal errors.
type State int

const (
	Start State = iota
	Authenticating
	AwaitingCode
	Submitting
	Submitted
	IteratingIdentifiers
	Triggering
	AwaitingDownload
	Filed
	Done
	Idle
	Aborted
)

var stateNames = [...]string{
	Start:                "start",
	Authenticating:       "authenticating",
	AwaitingCode:         "awaiting-code",
	Submitting:           "submitting",
	Submitted:            "submitted",
	IteratingIdentifiers: "iterating-identifiers",
	Triggering:           "triggering",
	AwaitingDownload:     "awaiting-download",
	Filed:                "filed",
	Done:                 "done",
	Idle:                 "idle",
	Aborted:              "aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}
