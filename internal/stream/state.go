package stream

// State is the lifecycle state of a streaming session.
//
// The machine is Idle -> Connecting -> Streaming -> Finalizing -> Idle, with
// the alternate terminal edge Streaming -> Failed -> Idle. Only one session
// machine is ever active; run-initiating controls stay disabled while the
// state is anything but Idle.
type State string

const (
	// StateIdle means no session is open and a new run may start.
	StateIdle State = "idle"

	// StateConnecting means the transport is being established and the run
	// config handshake has not completed yet.
	StateConnecting State = "connecting"

	// StateStreaming means progress and trade events are being dispatched.
	StateStreaming State = "streaming"

	// StateFinalizing means the terminal result arrived and final state is
	// being applied.
	StateFinalizing State = "finalizing"

	// StateFailed means the session ended with a terminal error.
	StateFailed State = "failed"
)

// CanStart reports whether a new run may be initiated in this state.
func (s State) CanStart() bool {
	return s == StateIdle
}

// Terminal reports whether the session has reached a terminal state.
func (s State) Terminal() bool {
	return s == StateFinalizing || s == StateFailed
}
