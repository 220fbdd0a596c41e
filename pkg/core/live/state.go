package live

// State is the orchestrator's lifecycle state.
type State int

const (
	// StateIdle means no session exists.
	StateIdle State = iota
	// StateStarting means credentials, adapters and capture are being brought up.
	StateStarting
	// StateActive means audio is flowing and utterances are being gated.
	StateActive
	// StateStopping means the shutdown protocol is running.
	StateStopping
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateActive:
		return "ACTIVE"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// StopReason records what ended a session.
type StopReason string

const (
	ReasonRequested   StopReason = "requested"
	ReasonSurfaceGone StopReason = "surface_gone"
	ReasonCaptureLost StopReason = "capture_lost"
	ReasonStale       StopReason = "stale"
)
