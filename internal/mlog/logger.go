package mlog

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"sync"
)

// sink is anything that can receive a fully formatted log line, mirroring
// the teacher's minimal logger interface.
type sink interface {
	Println(...interface{})
}

// Logger is a level-filtered writer that fans every accepted line out to a
// stdlib *log.Logger and into an in-memory Ring for later inspection
// through Dump.
type Logger struct {
	mu    sync.Mutex
	level Level
	out   sink
	ring  *Ring
}

// stdSink adapts a stdlib *log.Logger to the sink interface.
type stdSink struct{ l *log.Logger }

func (s stdSink) Println(v ...interface{}) { s.l.Println(v...) }

// New creates a Logger writing to os.Stderr at the given level, keeping the
// last ringSize lines for later retrieval.
func New(level Level, ringSize int) *Logger {
	return &Logger{
		level: level,
		out:   stdSink{log.New(os.Stderr, "", 0)},
		ring:  NewRing(ringSize),
	}
}

// SetOutput replaces the underlying sink, e.g. to also forward to a
// connected player during an admin session.
func (l *Logger) SetOutput(s sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = s
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) prologue(level Level) string {
	_, file, line, _ := runtime.Caller(3)
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	return level.String() + " " + short + ":" + strconv.Itoa(line) + ": "
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	msg := l.prologue(level) + fmt.Sprintf(format, args...)
	l.ring.Println(msg)
	l.out.Println(msg)
}

func (l *Logger) logln(level Level, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	msg := l.prologue(level) + fmt.Sprint(args...)
	l.ring.Println(msg)
	l.out.Println(msg)
}

func (l *Logger) Dump() []string { return l.ring.Dump() }

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(ERROR, format, args...) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.log(FATAL, format, args...) }

func (l *Logger) Debugln(args ...interface{}) { l.logln(DEBUG, args...) }
func (l *Logger) Infoln(args ...interface{})  { l.logln(INFO, args...) }
func (l *Logger) Warnln(args ...interface{})  { l.logln(WARN, args...) }
func (l *Logger) Errorln(args ...interface{}) { l.logln(ERROR, args...) }

// def is the package-level logger used by code that doesn't carry its
// own *Logger around, mirroring the teacher's package-function style
// (log.Debugln(...) called directly from goircd's client/daemon code).
var def = New(INFO, 1024)

func SetLevel(level Level)   { def.SetLevel(level) }
func SetOutput(s sink)       { def.SetOutput(s) }
func Dump() []string         { return def.Dump() }
func Debugf(f string, a ...interface{}) { def.Debugf(f, a...) }
func Infof(f string, a ...interface{})  { def.Infof(f, a...) }
func Warnf(f string, a ...interface{})  { def.Warnf(f, a...) }
func Errorf(f string, a ...interface{}) { def.Errorf(f, a...) }
func Fatalf(f string, a ...interface{}) { def.Fatalf(f, a...) }
func Debugln(a ...interface{}) { def.Debugln(a...) }
func Infoln(a ...interface{})  { def.Infoln(a...) }
func Warnln(a ...interface{})  { def.Warnln(a...) }
func Errorln(a ...interface{}) { def.Errorln(a...) }
