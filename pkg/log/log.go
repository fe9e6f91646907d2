package log

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/debug"
	"sync"
	"time"
)

type LogLevel string

const (
	FatalLevel    = "fatal"
	ErrorLevel    = "error"
	WarningLevel  = "warn"
	DebugLevel    = "debug"
	InfoLevel     = "info"
	TraceLevel    = "trace"
	DisabledLevel = "disabled"
)

var levelmap = map[LogLevel]int{
	TraceLevel:    5,
	DebugLevel:    4,
	InfoLevel:     3,
	WarningLevel:  2,
	ErrorLevel:    1,
	FatalLevel:    0,
	DisabledLevel: -1,
}

type logWrapper struct {
	mu    sync.RWMutex
	log   *log.Logger
	level LogLevel
}

func (l *logWrapper) enabled(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return ShouldLog(level, l.level)
}

func (l *logWrapper) Printf(level LogLevel, prefix, format string, args ...any) {
	if !l.enabled(level) {
		return
	}
	l.Println(level, prefix, fmt.Sprintf(format, args...))
}

func (l *logWrapper) Println(level LogLevel, prefix string, args ...any) {
	if !l.enabled(level) {
		return
	}
	ts := time.Now().Local()
	timeStr := fmt.Sprintf("%s.%03d", ts.Format("2006-01-02 15:04:05"), ts.Nanosecond()/1000000)
	levelStr := fmt.Sprintf("- %5s -", level)
	allArgs := []any{timeStr, levelStr}
	if prefix != "" {
		allArgs = append(allArgs, "["+prefix+"]")
	}
	allArgs = append(allArgs, args...)
	l.log.Println(allArgs...)
}

func (l *logWrapper) setLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

var (
	stdoutLog = &logWrapper{log: log.New(os.Stdout, "", 0), level: InfoLevel}
	stderrLog = &logWrapper{log: log.New(os.Stderr, "", 0), level: InfoLevel}
)

func SetLevel(loglevel LogLevel) error {
	if !ValidLogLevel(loglevel) {
		return fmt.Errorf("No such log level %s", loglevel)
	}

	stderrLog.setLevel(loglevel)
	stdoutLog.setLevel(loglevel)
	return nil
}

// SetOutput redirects both streams, mostly for tests.
func SetOutput(w io.Writer) {
	stdoutLog.log.SetOutput(w)
	stderrLog.log.SetOutput(w)
}

// SetVerbosity maps a repeated -v count onto a level.
func SetVerbosity(verbosity int) {
	switch {
	case verbosity >= 2:
		SetLevel(TraceLevel)
	case verbosity >= 1:
		SetLevel(DebugLevel)
	}
}

func ValidLogLevel(level LogLevel) bool {
	_, ok := levelmap[level]
	return ok
}

func ShouldLog(logLevel, enabled LogLevel) bool {
	if !ValidLogLevel(logLevel) || !ValidLogLevel(enabled) {
		return false
	}
	return levelmap[logLevel] <= levelmap[enabled]
}

func Trace(args ...interface{}) {
	stdoutLog.Println(TraceLevel, "", args...)
}

func Debug(args ...interface{}) {
	stdoutLog.Println(DebugLevel, "", args...)
}

func Info(args ...interface{}) {
	stdoutLog.Println(InfoLevel, "", args...)
}

func Warn(args ...interface{}) {
	stderrLog.Println(WarningLevel, "", args...)
}

func Error(args ...interface{}) {
	stderrLog.Println(ErrorLevel, "", args...)
}

func Fatal(args ...interface{}) {
	stderrLog.Println(FatalLevel, "", args...)
	debug.PrintStack()
	os.Exit(1)
}

func Tracef(format string, args ...interface{}) {
	stdoutLog.Printf(TraceLevel, "", format, args...)
}

func Debugf(format string, args ...interface{}) {
	stdoutLog.Printf(DebugLevel, "", format, args...)
}

func Infof(format string, args ...interface{}) {
	stdoutLog.Printf(InfoLevel, "", format, args...)
}

func Warnf(format string, args ...interface{}) {
	stderrLog.Printf(WarningLevel, "", format, args...)
}

func Errorf(format string, args ...interface{}) {
	stderrLog.Printf(ErrorLevel, "", format, args...)
}

func Fatalf(format string, args ...interface{}) {
	stderrLog.Printf(FatalLevel, "", format, args...)
	debug.PrintStack()
	os.Exit(1)
}

// A logger that tags every line with a fixed prefix,
// typically the name of the worker running a test.
type Prefixed struct {
	prefix string
}

func NewPrefixed(prefix string) *Prefixed {
	return &Prefixed{prefix: prefix}
}

func (p *Prefixed) Prefix() string {
	return p.prefix
}

func (p *Prefixed) Debugf(format string, args ...interface{}) {
	stdoutLog.Printf(DebugLevel, p.prefix, format, args...)
}

func (p *Prefixed) Infof(format string, args ...interface{}) {
	stdoutLog.Printf(InfoLevel, p.prefix, format, args...)
}

func (p *Prefixed) Warnf(format string, args ...interface{}) {
	stderrLog.Printf(WarningLevel, p.prefix, format, args...)
}

func (p *Prefixed) Errorf(format string, args ...interface{}) {
	stderrLog.Printf(ErrorLevel, p.prefix, format, args...)
}

type writeFunc func([]byte) (int, error)

func (fn writeFunc) Write(data []byte) (int, error) {
	return fn(data)
}

// NewLogWriter returns a writer that logs every write at the given level.
// Used to route third-party loggers (echo, net/http) through this package.
func NewLogWriter(level LogLevel) io.Writer {
	return writeFunc(func(data []byte) (int, error) {
		if level == WarningLevel || level == ErrorLevel {
			stderrLog.Printf(level, "", "%s", data)
		} else {
			stdoutLog.Printf(level, "", "%s", data)
		}
		return len(data), nil
	})
}

func DebugError(err error) {
	indent := 1

	Debug(err.Error())

	for {
		if err = errors.Unwrap(err); err == nil {
			break
		}

		Debugf("| %d: %s", indent, err.Error())
		indent += 1
	}
}
