// Package logging builds the process-wide zerolog logger, threaded
// through constructors. Output goes to the console and to the rolling log
// file in the working directory.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const logFileName = "sofascore_odds.log"

// New builds a zerolog.Logger at the given threshold, writing to stdout
// and appending JSON lines to the log file. An unrecognized level falls
// back to info; an unwritable log file degrades to console-only.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02T15:04:05Z07:00"}

	var writer io.Writer = console
	if f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		writer = zerolog.MultiLevelWriter(console, f)
	}

	return zerolog.New(writer).With().Timestamp().Logger()
}
