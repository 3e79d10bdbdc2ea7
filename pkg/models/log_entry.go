package models

import "time"

// LogLevel is the category of an operator log entry.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelLoad  LogLevel = "LOAD"
	LogLevelExec  LogLevel = "EXEC"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogEntry is one line of the operator-facing log feed.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}
