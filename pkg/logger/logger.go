package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/jonboulle/clockwork"
)

type Logger struct {
	logger *log.Logger
	level  Level
	clock  clockwork.Clock

	mu             sync.RWMutex
	publisher      port.LogPublisher
	publishAtLeast port.LogLevel
}

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter создает логгер с произвольным выводом (для тестов и CLI)
func NewWithWriter(level string, w io.Writer) *Logger {
	return &Logger{
		logger:         log.New(w, "", 0),
		level:          parseLevel(level),
		clock:          clockwork.NewRealClock(),
		publishAtLeast: port.LogLevelWarn,
	}
}

// WithClock подменяет источник времени для меток записей
func (l *Logger) WithClock(clock clockwork.Clock) *Logger {
	if clock != nil {
		l.clock = clock
	}
	return l
}

// SetLogPublisher подключает внешний приемник логов (CloudWatch Logs).
// Пересылаются записи с уровнем не ниже minLevel.
func (l *Logger) SetLogPublisher(publisher port.LogPublisher, minLevel port.LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publisher = publisher
	l.publishAtLeast = minLevel
}

func parseLevel(level string) Level {
	switch level {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.level <= DEBUG {
		l.log(port.LogLevelDebug, msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	if l.level <= INFO {
		l.log(port.LogLevelInfo, msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.level <= WARN {
		l.log(port.LogLevelWarn, msg, args...)
	}
}

func (l *Logger) Error(msg string, err error, args ...interface{}) {
	if l.level <= ERROR {
		if err != nil {
			args = append(args, "error", err.Error())
		}
		l.log(port.LogLevelError, msg, args...)
	}
}

func (l *Logger) log(level port.LogLevel, msg string, args ...interface{}) {
	now := l.clock.Now()
	message := fmt.Sprintf("[%s] [%s] %s", now.Format("2006-01-02 15:04:05"), level, msg)

	if len(args) > 0 {
		message += " |"
		for i := 0; i < len(args); i += 2 {
			if i+1 < len(args) {
				message += fmt.Sprintf(" %v=%v", args[i], args[i+1])
			}
		}
	}

	l.logger.Println(message)
	l.forward(level, msg, now, args)
}

func (l *Logger) forward(level port.LogLevel, msg string, now time.Time, args []interface{}) {
	l.mu.RLock()
	publisher, minLevel := l.publisher, l.publishAtLeast
	l.mu.RUnlock()

	if publisher == nil || !level.AtLeast(minLevel) {
		return
	}

	fields := make(map[string]interface{}, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		fields[fmt.Sprint(args[i])] = args[i+1]
	}

	entry := port.LogEntry{
		Timestamp: now,
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}

	// Ошибки приемника не логируются, чтобы не зациклиться
	_ = publisher.Publish(context.Background(), entry)
}
