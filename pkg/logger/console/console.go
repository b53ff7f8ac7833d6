package console

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Logger prints timestamped, leveled lines through charmbracelet/log.
type Logger struct {
	l *log.Logger
}

// Options configures New. A nil Output means stderr. Prefix tells the
// server, worker and graphctl processes apart.
type Options struct {
	Debug  bool
	Prefix string
	Output io.Writer
}

func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	lvl := log.InfoLevel
	if opts.Debug {
		lvl = log.DebugLevel
	}
	return &Logger{l: log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
		Prefix:          opts.Prefix,
	})}
}

func (c *Logger) Log(msg string, keyvals ...any)   { c.l.Print(msg, keyvals...) }
func (c *Logger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c *Logger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c *Logger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c *Logger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

// Fatal logs and exits with status 1.
func (c *Logger) Fatal(msg string, keyvals ...any) { c.l.Fatal(msg, keyvals...) }
