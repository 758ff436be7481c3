package record

import "fmt"

// Kind is the error taxonomy of §7. It is deliberately small and closed:
// callers branch on Kind, not on error identity, the way the teacher
// branches on sentinel values like sorted.ErrNotFound rather than on
// concrete error types.
type Kind uint8

const (
	OK Kind = iota
	MemoryError
	IOError
	CompressionError
	GameAPIError
	ConfigError
	NotSupported
	Aborted
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case MemoryError:
		return "memory_error"
	case IOError:
		return "io_error"
	case CompressionError:
		return "compression_error"
	case GameAPIError:
		return "game_api_error"
	case ConfigError:
		return "config_error"
	case NotSupported:
		return "not_supported"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// SolveError wraps an underlying error with a Kind from the taxonomy above,
// plus enough context (tier/position, when known) to form the diagnostic
// §7 requires for a fatal game_api_error.
type SolveError struct {
	Kind    Kind
	Tier    Tier
	Pos     Position
	HavePos bool
	Msg     string
	Err     error
}

func (e *SolveError) Error() string {
	loc := ""
	if e.HavePos {
		loc = fmt.Sprintf(" at %d:%d", e.Tier, e.Pos)
	} else if e.Tier != 0 {
		loc = fmt.Sprintf(" at tier %d", e.Tier)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s%s: %s: %v", e.Kind, loc, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s%s: %s", e.Kind, loc, e.Msg)
}

func (e *SolveError) Unwrap() error { return e.Err }

// New builds a SolveError with no position context.
func New(kind Kind, msg string, err error) *SolveError {
	return &SolveError{Kind: kind, Msg: msg, Err: err}
}

// NewAt builds a SolveError citing the offending tier and position, as §7
// requires for game_api_error diagnostics.
func NewAt(kind Kind, tier Tier, pos Position, msg string, err error) *SolveError {
	return &SolveError{Kind: kind, Tier: tier, Pos: pos, HavePos: true, Msg: msg, Err: err}
}

// KindOf extracts the Kind of err if it is (or wraps) a *SolveError, or OK
// if err is nil, or an unspecified non-zero Kind (IOError) as a safe default
// for foreign errors that escaped the taxonomy.
func KindOf(err error) Kind {
	if err == nil {
		return OK
	}
	var se *SolveError
	if ok := asSolveError(err, &se); ok {
		return se.Kind
	}
	return IOError
}

func asSolveError(err error, target **SolveError) bool {
	for err != nil {
		if se, ok := err.(*SolveError); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
