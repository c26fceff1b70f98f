// Package memory provides a logging backend that records entries in memory.
// It is meant for tests that assert on logged failures.
package memory

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is a single recorded log call.
type Entry struct {
	Level   string
	Message string
	Keyvals []any
}

// Value returns the value logged for key, if any.
func (e Entry) Value(key string) (any, bool) {
	for i := 0; i+1 < len(e.Keyvals); i += 2 {
		if k, ok := e.Keyvals[i].(string); ok && k == key {
			return e.Keyvals[i+1], true
		}
	}
	return nil, false
}

// Recorder implements logger.LoggerInstance.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(level, message string, keyvals []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: message, Keyvals: keyvals})
}

func (r *Recorder) Debug(message string, keyvals ...any) { r.record("debug", message, keyvals) }
func (r *Recorder) Info(message string, keyvals ...any)  { r.record("info", message, keyvals) }
func (r *Recorder) Warn(message string, keyvals ...any)  { r.record("warn", message, keyvals) }
func (r *Recorder) Error(message string, keyvals ...any) { r.record("error", message, keyvals) }

// Fatal records the entry and panics instead of exiting so tests can recover.
func (r *Recorder) Fatal(message string, keyvals ...any) {
	r.record("fatal", message, keyvals)
	panic(fmt.Sprintf("fatal: %s", message))
}

// Entries returns a copy of all recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Find returns the entries at level whose message contains substr.
func (r *Recorder) Find(level, substr string) []Entry {
	out := make([]Entry, 0)
	for _, e := range r.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			out = append(out, e)
		}
	}
	return out
}
