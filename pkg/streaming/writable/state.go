package writable

// State is the lifecycle state of a Stream.
//
// Transitions are one way: Writable -> Erroring -> {Closed, Errored}, or
// Writable -> Closed on a clean close. Closed and Errored are terminal.
type State int

const (
	// Writable accepts writes.
	Writable State = iota

	// Erroring has a stored error and waits for the in-flight sink step to
	// settle before cleaning up.
	Erroring

	// Errored is terminal: the stream failed or was aborted.
	Errored

	// Closed is terminal: the sink closed successfully.
	Closed
)

func (s State) String() string {
	switch s {
	case Writable:
		return "writable"
	case Erroring:
		return "erroring"
	case Errored:
		return "errored"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
