package loader

// State is the position of a loader in its fetch cycle.
type State int

const (
	// StateIdle means no request is outstanding and more pages may exist.
	StateIdle State = iota

	// StateFetching means a page request is outstanding.
	StateFetching

	// StateFailed means the last request failed; the next visibility event retries.
	StateFailed

	// StateExhausted is terminal: the source has no further pages.
	StateExhausted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateFailed:
		return "idle-with-error"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Footer is the status line shown under a list.
type Footer int

const (
	FooterLoading Footer = iota
	FooterReady
	FooterEnd
	FooterNoResults
	FooterFailed
)

// String returns a default footer text.
func (f Footer) String() string {
	switch f {
	case FooterLoading:
		return "Fetching more ..."
	case FooterReady:
		return "Ready to fetch more"
	case FooterEnd:
		return "You've reached the end"
	case FooterNoResults:
		return "No results"
	case FooterFailed:
		return "Could not load more, scroll to retry"
	default:
		return ""
	}
}

// Snapshot is a read-only view of a loader for the presentation layer.
type Snapshot[T any] struct {
	Items     []T
	State     State
	Fetching  bool
	Exhausted bool

	// Failed is set after a failed request until the next request is issued.
	Failed bool

	// Calls counts page requests issued over the loader's lifetime.
	Calls int
}

// Footer derives the list footer from the snapshot.
func (s Snapshot[T]) Footer() Footer {
	switch {
	case s.Fetching:
		return FooterLoading
	case s.Failed:
		return FooterFailed
	case !s.Exhausted:
		return FooterReady
	case len(s.Items) > 0:
		return FooterEnd
	default:
		return FooterNoResults
	}
}
