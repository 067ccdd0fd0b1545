package bridge

// State is the lifecycle of one bridged connection. Transitions only move
// forward; there is no retry state.
type State int

const (
	Connecting State = iota
	Authenticating
	Launching
	Relaying
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Launching:
		return "launching"
	case Relaying:
		return "relaying"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
