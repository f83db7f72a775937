package session

import "strconv"

// State is the lifecycle state of a session.
type State uint8

// Session states.
const (
	// Active sessions accept registrations and flushes.
	Active State = iota
	// Flushing is the state of a session while its changes are written.
	Flushing
	// Aborted sessions had a flush fail. Only Rollback and Close are
	// accepted until the session is rolled back.
	Aborted
	// Closed sessions reject every operation.
	Closed
)

var stateNames = [...]string{
	Active:   "active",
	Flushing: "flushing",
	Aborted:  "aborted",
	Closed:   "closed",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}
