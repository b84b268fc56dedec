package port

import (
	"context"
	"strings"
	"time"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
}

// ParseLogLevel maps "debug", "warn", ... to a LogLevel; unknown values fall back to INFO.
func ParseLogLevel(raw string) LogLevel {
	level := LogLevel(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := levelRank[level]; ok {
		return level
	}
	return LogLevelInfo
}

// AtLeast reports whether l is as severe as min or more.
func (l LogLevel) AtLeast(min LogLevel) bool {
	return levelRank[l] >= levelRank[min]
}

// LogEntry represents a structured log entry for publishing to external log systems.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Fields    map[string]interface{}
}

// LogPublisher ships log entries to an external sink (CloudWatch Logs).
type LogPublisher interface {
	// Publish sends a single log entry to the external system.
	Publish(ctx context.Context, entry LogEntry) error

	// PublishBatch sends multiple log entries in a single operation.
	PublishBatch(ctx context.Context, entries []LogEntry) error

	// Flush forces immediate publication of any buffered log entries.
	Flush(ctx context.Context) error
}
