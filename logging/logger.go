// Package logging provides the structured logger used across every
// cyphercoord component.
package logging

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field is a structured log field.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, val string) Field                 { return Field{Key: key, Value: val} }
func Int(key string, val int) Field                 { return Field{Key: key, Value: val} }
func Int64(key string, val int64) Field             { return Field{Key: key, Value: val} }
func Float64(key string, val float64) Field         { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field               { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field  { return Field{Key: key, Value: val.String()} }
func Time(key string, val time.Time) Field          { return Field{Key: key, Value: val.Format(time.RFC3339Nano)} }
func Error(key string, err error) Field {
	if err == nil {
		return Field{Key: key, Value: nil}
	}
	return Field{Key: key, Value: err.Error()}
}

// Logger is the structured logging interface every component depends on.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

type jsonLogger struct {
	out        *log.Logger
	minLevel   Level
	baseFields []Field
}

// New creates a JSON-line logger writing to out (os.Stdout if nil).
func New(level string, out io.Writer) Logger {
	if out == nil {
		out = os.Stdout
	}
	return &jsonLogger{
		out:      log.New(out, "", 0),
		minLevel: ParseLevel(level),
	}
}

// NewDefault creates an INFO-level logger writing to stdout.
func NewDefault() Logger {
	return New("INFO", os.Stdout)
}

func (l *jsonLogger) Debug(msg string, fields ...Field) {
	if l.minLevel <= DEBUG {
		l.log(DEBUG, msg, fields...)
	}
}

func (l *jsonLogger) Info(msg string, fields ...Field) {
	if l.minLevel <= INFO {
		l.log(INFO, msg, fields...)
	}
}

func (l *jsonLogger) Warn(msg string, fields ...Field) {
	if l.minLevel <= WARN {
		l.log(WARN, msg, fields...)
	}
}

func (l *jsonLogger) Error(msg string, fields ...Field) {
	if l.minLevel <= ERROR {
		l.log(ERROR, msg, fields...)
	}
}

func (l *jsonLogger) WithFields(fields ...Field) Logger {
	combined := make([]Field, 0, len(l.baseFields)+len(fields))
	combined = append(combined, l.baseFields...)
	combined = append(combined, fields...)
	return &jsonLogger{out: l.out, minLevel: l.minLevel, baseFields: combined}
}

func (l *jsonLogger) log(level Level, msg string, fields ...Field) {
	all := make([]Field, 0, len(l.baseFields)+len(fields)+3)
	all = append(all,
		Field{Key: "timestamp", Value: time.Now().Format(time.RFC3339Nano)},
		Field{Key: "level", Value: level.String()},
		Field{Key: "message", Value: msg},
	)
	all = append(all, l.baseFields...)
	all = append(all, fields...)
	all = redact(all)

	m := make(map[string]interface{}, len(all))
	for _, f := range all {
		m[f.Key] = f.Value
	}

	b, err := json.Marshal(m)
	if err != nil {
		l.out.Printf(`{"level":"ERROR","message":"failed to marshal log entry","error":%q}`, err.Error())
		return
	}
	l.out.Println(string(b))
}

var sensitiveKeys = map[string]bool{
	"password": true, "token": true, "secret": true,
	"authorization": true, "api_key": true, "apikey": true, "auth": true,
}

func redact(fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		if sensitiveKeys[strings.ToLower(f.Key)] {
			out[i] = Field{Key: f.Key, Value: "[REDACTED]"}
		} else {
			out[i] = f
		}
	}
	return out
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field)     {}
func (noopLogger) Info(string, ...Field)      {}
func (noopLogger) Warn(string, ...Field)      {}
func (noopLogger) Error(string, ...Field)     {}
func (n noopLogger) WithFields(...Field) Logger { return n }

// NewNoop returns a Logger that discards everything, useful in tests.
func NewNoop() Logger { return noopLogger{} }
