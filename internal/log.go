package internal

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	SUCCESS
)

var levelNames = map[LogLevel]string{
	DEBUG:   "DEBUG",
	INFO:    "INFO",
	WARNING: "WARNING",
	ERROR:   "ERROR",
	SUCCESS: "SUCCESS",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps a config or flag value such as "info" or "warn" to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARNING, nil
	case "error":
		return ERROR, nil
	case "success":
		return SUCCESS, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

type Logger struct {
	*log.Logger
	mu     sync.Mutex
	level  LogLevel
	writer io.Writer
	now    func() time.Time
}

var (
	defaultLogger *Logger
	once          sync.Once
)

func NewLogger(out io.Writer, level LogLevel) *Logger {
	return &Logger{
		Logger: log.New(out, "", 0),
		level:  level,
		writer: out,
		now:    time.Now,
	}
}

func InitDefaultLogger(level LogLevel) {
	once.Do(func() {
		defaultLogger = NewLogger(os.Stdout, level)
	})
}

func GetDefaultLogger() *Logger {
	InitDefaultLogger(INFO)
	return defaultLogger
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *Logger) SetOutput(out io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = out
	l.Logger.SetOutput(out)
}

func (l *Logger) logInternal(level LogLevel, format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := l.now().Format(time.DateTime)
	msg := strings.TrimRight(fmt.Sprintf(format, v...), "\n")
	logEntry := fmt.Sprintf("%s [%s] %s\n", timestamp, level, msg)

	_, _ = l.writer.Write([]byte(logEntry))
}

func (l *Logger) Debug(format string, v ...any) {
	l.logInternal(DEBUG, format, v...)
}

func (l *Logger) Info(format string, v ...any) {
	l.logInternal(INFO, format, v...)
}

func (l *Logger) Warn(format string, v ...any) {
	l.logInternal(WARNING, format, v...)
}

func (l *Logger) Error(format string, v ...any) {
	l.logInternal(ERROR, format, v...)
}

func (l *Logger) Success(format string, v ...any) {
	l.logInternal(SUCCESS, format, v...)
}

func Debug(format string, v ...any) {
	GetDefaultLogger().Debug(format, v...)
}

func Info(format string, v ...any) {
	GetDefaultLogger().Info(format, v...)
}

func Warn(format string, v ...any) {
	GetDefaultLogger().Warn(format, v...)
}

func Error(format string, v ...any) {
	GetDefaultLogger().Error(format, v...)
}

func Success(format string, v ...any) {
	GetDefaultLogger().Success(format, v...)
}
