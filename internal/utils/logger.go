package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs the segdl console logger on stderr. Job, probe and
// fetch detail is logged at debug level, so debug exposes per-segment work.
func InitLogger(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = newLogger(os.Stderr, false)
}

// GetLogger returns the global logger tagged with a component name such as
// "job", "probe", "scheduler" or "assembler".
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// SetLogOutput moves logging to w without colors, leaving the terminal to
// the progress display.
func SetLogOutput(w io.Writer) {
	log.Logger = newLogger(w, true)
}

func newLogger(w io.Writer, noColor bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:           w,
		TimeFormat:    time.DateTime,
		NoColor:       noColor,
		PartsOrder:    []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, "component", zerolog.MessageFieldName},
		FieldsExclude: []string{"component"},
	}
	return zerolog.New(output).With().Timestamp().Logger()
}
