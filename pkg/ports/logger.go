package ports

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LevelDebug is for component-level internal processing logs.
	LevelDebug LogLevel = iota
	// LevelInfo is for coordination-level progress messages.
	LevelInfo
	// LevelWarn is for recoverable problems that don't stop a run.
	LevelWarn
	// LevelError is for problems that abort a run.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseLogLevel parses a string into a LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "quiet":
		return LevelQuiet
	default:
		return LevelInfo
	}
}

// Logger abstracts logging operations with multi-language support.
// The msg parameter is a message key that can be translated.
type Logger interface {
	// Debug logs internal component processing details.
	Debug(msg string, args ...interface{})

	// Info logs coordination-level progress updates.
	Info(msg string, args ...interface{})

	// Warn logs recoverable problems.
	Warn(msg string, args ...interface{})

	// Error logs problems that abort processing.
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with the
	// component name.
	WithComponent(component string) Logger
}
