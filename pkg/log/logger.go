// Structured logging for the fan controller host
//
// Leveled, prefixed per-component loggers with optional structured
// fields and text or JSON output.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

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
	}
	return "UNKNOWN"
}

// ParseLevel parses a level name, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Format selects the output encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat parses a format name, defaulting to text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Fields is a set of structured key-value pairs attached to a message.
type Fields map[string]interface{}

// Logger writes leveled messages for one component.
type Logger struct {
	mu         sync.Mutex
	prefix     string
	writer     io.Writer
	level      Level
	format     Format
	timeFormat string
}

// New creates a logger writing to stderr at INFO level.
func New(prefix string) *Logger {
	return &Logger{
		prefix:     prefix,
		writer:     os.Stderr,
		level:      INFO,
		format:     FormatText,
		timeFormat: "2006-01-02 15:04:05.000",
	}
}

// SetLevel sets the minimum level that is emitted.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// SetWriter redirects output, e.g. to a rotating file or a test buffer.
func (l *Logger) SetWriter(w io.Writer) {
	l.mu.Lock()
	l.writer = w
	l.mu.Unlock()
}

// SetFormat selects text or JSON output.
func (l *Logger) SetFormat(f Format) {
	l.mu.Lock()
	l.format = f
	l.mu.Unlock()
}

// WithPrefix returns a derived logger for a sub-component, sharing the
// parent's writer, level and format.
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		prefix:     l.prefix + "." + prefix,
		writer:     l.writer,
		level:      l.level,
		format:     l.format,
		timeFormat: l.timeFormat,
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(DEBUG, msg, args, nil) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(INFO, msg, args, nil) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(WARN, msg, args, nil) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(ERROR, msg, args, nil) }

// WithFields returns an Entry carrying structured fields.
func (l *Logger) WithFields(fields Fields) *Entry {
	return &Entry{logger: l, fields: fields}
}

// WithError returns an Entry with the error recorded as a field.
func (l *Logger) WithError(err error) *Entry {
	return l.WithFields(Fields{"error": err.Error()})
}

// Entry is a message under construction with attached fields.
type Entry struct {
	logger *Logger
	fields Fields
}

// WithFields merges more fields into the entry.
func (e *Entry) WithFields(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{logger: e.logger, fields: merged}
}

func (e *Entry) Debug(msg string, args ...interface{}) { e.logger.log(DEBUG, msg, args, e.fields) }
func (e *Entry) Info(msg string, args ...interface{})  { e.logger.log(INFO, msg, args, e.fields) }
func (e *Entry) Warn(msg string, args ...interface{})  { e.logger.log(WARN, msg, args, e.fields) }
func (e *Entry) Error(msg string, args ...interface{}) { e.logger.log(ERROR, msg, args, e.fields) }

func (l *Logger) log(level Level, msg string, args []interface{}, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	var line string
	if l.format == FormatJSON {
		line = l.formatJSON(level, msg, fields)
	} else {
		line = l.formatText(level, msg, fields)
	}
	io.WriteString(l.writer, line)
}

func (l *Logger) formatText(level Level, msg string, fields Fields) string {
	var sb strings.Builder
	sb.WriteString(time.Now().Format(l.timeFormat))
	fmt.Fprintf(&sb, " [%-5s] %s: %s", level, l.prefix, msg)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, fields[k])
		}
		sb.WriteString("}")
	}
	sb.WriteString("\n")
	return sb.String()
}

type jsonEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) formatJSON(level Level, msg string, fields Fields) string {
	entry := jsonEntry{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Level:     level.String(),
		Logger:    l.prefix,
		Message:   msg,
		Fields:    fields,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`+"\n", err.Error())
	}
	return string(data) + "\n"
}

var (
	defaultMu     sync.Mutex
	defaultLogger = New("host")
)

// Default returns the process-wide fallback logger.
func Default() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLogger
}

// SetDefault replaces the process-wide fallback logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}
