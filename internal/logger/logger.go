package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	entry  *logrus.Entry
	sentry bool
}

func New() *Logger {
	return NewWithWriter(os.Stdout)
}

func NewWithWriter(writer io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(writer)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return &Logger{entry: logrus.NewEntry(base)}
}

// Configure applies the output format ("json" or "text") and level.
func (l *Logger) Configure(format, level string) {
	base := l.entry.Logger
	if strings.EqualFold(format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}
	if parsed, err := logrus.ParseLevel(level); err == nil {
		base.SetLevel(parsed)
	}
}

// EnableSentry forwards errors logged through Error and Errorf to Sentry.
// sentry.Init must already have been called.
func (l *Logger) EnableSentry() {
	l.sentry = true
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(fields), sentry: l.sentry}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value), sentry: l.sentry}
}

func (l *Logger) Debug(v ...interface{}) {
	l.entry.Debug(sprintln(v...))
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

func (l *Logger) Info(v ...interface{}) {
	l.entry.Info(sprintln(v...))
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

func (l *Logger) Warn(v ...interface{}) {
	l.entry.Warn(sprintln(v...))
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.entry.Error(sprintln(v...))
	l.capture(v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
	l.capture(v...)
}

func (l *Logger) capture(v ...interface{}) {
	if !l.sentry {
		return
	}
	for _, arg := range v {
		err, ok := arg.(error)
		if !ok {
			continue
		}
		fields := l.entry.Data
		sentry.WithScope(func(scope *sentry.Scope) {
			for k, val := range fields {
				scope.SetExtra(k, val)
			}
			sentry.CaptureException(err)
		})
		return
	}
}

// sprintln keeps the Println spacing of the variadic API without the trailing newline.
func sprintln(v ...interface{}) string {
	s := fmt.Sprintln(v...)
	return strings.TrimSuffix(s, "\n")
}
