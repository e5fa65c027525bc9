package historyquiz

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// logger is the package logger; replaced by SetupLogger or SetLogger.
var logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Global verbose flag
var verboseMode bool

// SetupLogger configures the package logger.
//   - level: trace, debug, info, warn, error
//   - format: "pretty" for console output, anything else for JSON
func SetupLogger(level, format string) zerolog.Logger {
	var w io.Writer = os.Stderr
	if format == "pretty" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	SetLogger(l)
	return l
}

// SetLogger replaces the package logger
func SetLogger(l zerolog.Logger) {
	logger = l
}

// Logger returns the package logger
func Logger() zerolog.Logger {
	return logger
}

// SetVerbose sets the global verbose mode
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// VerboseLog logs only when verbose mode is enabled
func VerboseLog(format string, v ...interface{}) {
	if verboseMode {
		logger.Info().Msgf(format, v...)
	}
}
