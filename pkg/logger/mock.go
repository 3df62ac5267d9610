package logger

import (
	"fmt"
	"strings"
	"sync"
)

// MockLogger is a Logger implementation for tests. It records every message
// so tests can assert on what was logged.
type MockLogger struct {
	Messages *[]LogMessage
	attrs    []any
	mu       sync.Mutex
}

// LogMessage is one recorded log call.
type LogMessage struct {
	Level string
	Msg   string
	Args  []any
}

// NewMockLogger creates a new mock logger.
func NewMockLogger() *MockLogger {
	messages := make([]LogMessage, 0)
	return &MockLogger{Messages: &messages}
}

func (m *MockLogger) record(level, msg string, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.Messages = append(*m.Messages, LogMessage{Level: level, Msg: msg, Args: m.mergeAttrs(args)})
}

// Debug records a debug message.
func (m *MockLogger) Debug(msg string, args ...any) { m.record("DEBUG", msg, args) }

// Info records an info message.
func (m *MockLogger) Info(msg string, args ...any) { m.record("INFO", msg, args) }

// Warn records a warning message.
func (m *MockLogger) Warn(msg string, args ...any) { m.record("WARN", msg, args) }

// Error records an error message.
func (m *MockLogger) Error(msg string, args ...any) { m.record("ERROR", msg, args) }

// With returns a new logger sharing the same message slice with additional
// attributes prepended to every subsequent call.
func (m *MockLogger) With(args ...any) Logger {
	m.mu.Lock()
	defer m.mu.Unlock()

	newAttrs := make([]any, 0, len(m.attrs)+len(args))
	newAttrs = append(newAttrs, m.attrs...)
	newAttrs = append(newAttrs, args...)

	return &MockLogger{Messages: m.Messages, attrs: newAttrs}
}

func (m *MockLogger) mergeAttrs(args []any) []any {
	if len(m.attrs) == 0 {
		return args
	}
	merged := make([]any, 0, len(m.attrs)+len(args))
	merged = append(merged, m.attrs...)
	merged = append(merged, args...)
	return merged
}

// HasMessage reports whether a message with the given level and exact text was logged.
func (m *MockLogger) HasMessage(level, msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lm := range *m.Messages {
		if lm.Level == level && lm.Msg == msg {
			return true
		}
	}
	return false
}

// HasMessageContaining reports whether a message with the given level containing
// the substring was logged.
func (m *MockLogger) HasMessageContaining(level, substring string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lm := range *m.Messages {
		if lm.Level == level && strings.Contains(lm.Msg, substring) {
			return true
		}
	}
	return false
}

// Clear discards all recorded messages.
func (m *MockLogger) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.Messages = make([]LogMessage, 0)
}

// String renders all recorded messages, one per line.
func (m *MockLogger) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sb strings.Builder
	for _, msg := range *m.Messages {
		fmt.Fprintf(&sb, "[%s] %s %v\n", msg.Level, msg.Msg, msg.Args)
	}
	return sb.String()
}
