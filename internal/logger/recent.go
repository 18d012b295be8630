package logger

import (
	"encoding/json"
)

const defaultBufferSize = 1000

// LogEntry represents a parsed log entry.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// RecentLogs implements io.Writer and keeps the latest JSON log entries in memory.
type RecentLogs struct {
	buffer *RingBuffer[LogEntry]
}

// NewRecentLogs creates a buffer holding up to size entries.
func NewRecentLogs(size int) *RecentLogs {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &RecentLogs{buffer: NewRingBuffer[LogEntry](size)}
}

// Write implements io.Writer. It receives JSON log entries from zerolog.
func (b *RecentLogs) Write(p []byte) (n int, err error) {
	n = len(p)

	entry, parseErr := parseLogEntry(p)
	if parseErr != nil {
		return n, nil //nolint:nilerr // Silently ignore malformed log entries
	}

	b.buffer.Push(entry)
	return n, nil
}

// Entries returns buffered entries, oldest first. A positive limit keeps only
// the newest limit entries; a non-empty level keeps that level and above.
func (b *RecentLogs) Entries(limit int, level string) []LogEntry {
	all := b.buffer.GetAll()
	if level != "" {
		min := ParseLevel(level)
		kept := all[:0]
		for _, e := range all {
			if ParseLevel(e.Level) >= min {
				kept = append(kept, e)
			}
		}
		all = kept
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

// parseLogEntry parses a zerolog JSON entry into a LogEntry.
func parseLogEntry(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{
		Fields: make(map[string]any),
	}

	if ts, ok := raw["time"].(string); ok {
		entry.Timestamp = ts
		delete(raw, "time")
	}

	if level, ok := raw["level"].(string); ok {
		entry.Level = level
		delete(raw, "level")
	}

	if component, ok := raw["component"].(string); ok {
		entry.Component = component
		delete(raw, "component")
	}

	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}

	for k, v := range raw {
		entry.Fields[k] = v
	}

	return entry, nil
}
