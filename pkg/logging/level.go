package logging

// Level is the severity of a log entry.
// The zero Level is treated as LevelInfo.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

const defaultLevel = LevelInfo

func (ll Level) String() string { return string(ll) }

// allows reports whether an entry of the given level passes a logger configured with ll.
func (ll Level) allows(entry Level) bool {
	return ll.rank() <= entry.rank()
}

func (ll Level) rank() int {
	switch ll {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}
