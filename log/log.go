// Package log is a thin logging facade over logrus so the rest of the
// codebase does not import a logging library directly.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Fields map[string]interface{}

type Level uint32

var (
	ErrorLevel = Level(logrus.ErrorLevel)
	WarnLevel  = Level(logrus.WarnLevel)
	InfoLevel  = Level(logrus.InfoLevel)
	DebugLevel = Level(logrus.DebugLevel)
)

// Entry is a logger with fields attached.
type Entry interface {
	WithField(key string, value interface{}) Entry
	WithFields(fields Fields) Entry
	WithError(err error) Entry

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
}

type wrapEntry struct {
	*logrus.Entry
}

func (e *wrapEntry) WithField(key string, value interface{}) Entry {
	return &wrapEntry{e.Entry.WithField(key, value)}
}

func (e *wrapEntry) WithFields(fields Fields) Entry {
	return &wrapEntry{e.Entry.WithFields(logrus.Fields(fields))}
}

func (e *wrapEntry) WithError(err error) Entry {
	return &wrapEntry{e.Entry.WithError(err)}
}

var std = logrus.New()

func init() {
	std.SetOutput(os.Stdout)
}

// SetOutput sets the standard logger output.
func SetOutput(out io.Writer) {
	std.SetOutput(out)
}

// SetLevel sets the standard logger level.
func SetLevel(level Level) {
	std.SetLevel(logrus.Level(level))
}

func WithField(key string, value interface{}) Entry {
	return &wrapEntry{std.WithField(key, value)}
}

func WithFields(fields Fields) Entry {
	return &wrapEntry{std.WithFields(logrus.Fields(fields))}
}

func WithError(err error) Entry {
	return &wrapEntry{std.WithError(err)}
}

func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { std.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { std.Fatalf(format, args...) }

func Debug(args ...interface{}) { std.Debug(args...) }
func Info(args ...interface{})  { std.Info(args...) }
func Warn(args ...interface{})  { std.Warn(args...) }
func Error(args ...interface{}) { std.Error(args...) }
func Fatal(args ...interface{}) { std.Fatal(args...) }
