package log

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

// NewConsoleWriter returns a human friendly output sink backed by
// zerolog's console writer. Pass it to SetOutput for interactive runs.
func NewConsoleWriter(out io.Writer, noColor bool) io.Writer {
	return zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = out
		w.NoColor = noColor
		w.TimeFormat = time.Kitchen
	})
}

// UseConsoleOutput switches the standard logger to console formatting.
func UseConsoleOutput(out io.Writer, noColor bool) {
	std.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		// zerolog's console writer expects "message", logrus emits "msg".
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	std.SetOutput(NewConsoleWriter(out, noColor))
}
