package core

import (
	"fmt"
	"sync"
)

// Reporter receives user-facing progress. It is separate from the debug log:
// everything passed here is meant to be read by the person running the
// installer.
type Reporter interface {
	Step(msg string)
	Warn(msg string)
	Success(msg string)
}

// NopReporter discards every message.
type NopReporter struct{}

func (NopReporter) Step(string)    {}
func (NopReporter) Warn(string)    {}
func (NopReporter) Success(string) {}

// Message is one recorded Reporter call.
type Message struct {
	Level string // "step", "warn" or "success"
	Text  string
}

// RecordingReporter keeps every message in order. Used by tests and by the
// summary printer to list warnings after the run.
type RecordingReporter struct {
	mu       sync.Mutex
	Messages []Message
}

func (r *RecordingReporter) add(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, Message{Level: level, Text: msg})
}

func (r *RecordingReporter) Step(msg string)    { r.add("step", msg) }
func (r *RecordingReporter) Warn(msg string)    { r.add("warn", msg) }
func (r *RecordingReporter) Success(msg string) { r.add("success", msg) }

// Warnings returns the recorded warnings.
func (r *RecordingReporter) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.Messages {
		if m.Level == "warn" {
			out = append(out, m.Text)
		}
	}
	return out
}

// teeReporter forwards to two reporters.
type teeReporter struct{ a, b Reporter }

// TeeReporter returns a Reporter that forwards every call to a and b.
func TeeReporter(a, b Reporter) Reporter { return teeReporter{a, b} }

func (t teeReporter) Step(msg string)    { t.a.Step(msg); t.b.Step(msg) }
func (t teeReporter) Warn(msg string)    { t.a.Warn(msg); t.b.Warn(msg) }
func (t teeReporter) Success(msg string) { t.a.Success(msg); t.b.Success(msg) }

func stepf(r Reporter, format string, args ...any) { r.Step(fmt.Sprintf(format, args...)) }
func warnf(r Reporter, format string, args ...any) { r.Warn(fmt.Sprintf(format, args...)) }
