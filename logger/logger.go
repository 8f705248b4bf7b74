// Package logger provides the tagged component logger shared by the signals
// packages.
//
// Every line goes to kun/log with the component as a field. In development
// mode lines are also echoed to stdout in color, whatever the kun/log level.
package logger

import (
	"fmt"

	"github.com/fatih/color"
	kunlog "github.com/yaoapp/kun/log"
	"github.com/yaoapp/signals/config"
)

type severity int

const (
	sevTrace severity = iota
	sevDebug
	sevInfo
	sevWarn
	sevError
)

// style is the console rendering and kun/log level of one severity.
type style struct {
	level kunlog.Level
	mark  string
	color *color.Color
}

var styles = [...]style{
	sevTrace: {kunlog.TraceLevel, "→", color.New(color.FgHiBlack)},
	sevDebug: {kunlog.DebugLevel, "•", color.New(color.FgHiBlack)},
	sevInfo:  {kunlog.InfoLevel, "ℹ", color.New(color.FgCyan)},
	sevWarn:  {kunlog.WarnLevel, "⚠", color.New(color.FgYellow)},
	sevError: {kunlog.ErrorLevel, "✗", color.New(color.FgRed)},
}

// Logger writes lines tagged with a component name.
type Logger struct {
	prefix string
	entry  *kunlog.Entry
}

// New creates a Logger for a component, e.g. "dispatch" or "signal".
func New(tag string) *Logger {
	return &Logger{
		prefix: "[signals:" + tag + "]",
		entry:  kunlog.With(kunlog.F{"component": tag}),
	}
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(sevTrace, format, args) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(sevDebug, format, args) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(sevInfo, format, args) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(sevWarn, format, args) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(sevError, format, args) }

// log formats the message only when some output will take it.
func (l *Logger) log(sev severity, format string, args []interface{}) {
	st := styles[sev]
	dev := config.IsDevelopment()
	kun := kunlog.GetLevel() >= st.level
	if !dev && !kun {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if dev {
		st.color.Printf("  %s %s %s\n", st.mark, l.prefix, msg)
	}
	if !kun {
		return
	}
	switch sev {
	case sevTrace:
		l.entry.Trace("%s %s", l.prefix, msg)
	case sevDebug:
		l.entry.Debug("%s %s", l.prefix, msg)
	case sevInfo:
		l.entry.Info("%s %s", l.prefix, msg)
	case sevWarn:
		l.entry.Warn("%s %s", l.prefix, msg)
	default:
		l.entry.Error("%s %s", l.prefix, msg)
	}
}

// IsDev returns true when running in development mode.
func IsDev() bool {
	return config.IsDevelopment()
}

// Raw writes pre-formatted text to stdout in development mode only, for
// multi-line output such as JSON failure records.
func Raw(s string) {
	if config.IsDevelopment() {
		fmt.Print(s)
	}
}
