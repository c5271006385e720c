package database

// State is the lifecycle state of a Proxy.
//
//	Created -> Connecting -> Ready -> (Idle <-> Executing) -> DisposeRequested -> Draining -> Closed
type State int32

const (
	StateCreated State = iota
	StateConnecting
	StateReady
	StateIdle
	StateExecuting
	StateDisposeRequested
	StateDraining
	StateClosed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateDisposeRequested:
		return "dispose-requested"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// AcceptsCommands reports whether commands may be submitted in this state.
func (s State) AcceptsCommands() bool {
	return s == StateReady || s == StateIdle || s == StateExecuting
}
