// Package audit persists bounded, best-effort audit entries for privileged
// mutations. Writes happen after the primary mutation and never abort it:
// a failed audit write is logged and dropped.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxActionLen bounds the action code column.
	MaxActionLen = 100
	// MaxTargetTypeLen bounds the target type column.
	MaxTargetTypeLen = 100
	// MaxSummaryLen bounds the human readable summary column.
	MaxSummaryLen = 300
)

// Logger is the minimal logging surface the recorder needs.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Recorder writes audit entries through a Store.
type Recorder struct {
	store  Store
	logger Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder backed by the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store:  store,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger overrides the logger used for dropped writes.
func (r *Recorder) WithLogger(logger Logger) *Recorder {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Record persists an audit entry. Missing action, target type, or summary
// makes the call a silent no-op, as does an empty diff on entries that
// carry one. String fields are truncated before persistence; Record never
// fails the caller.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.Action == "" || entry.TargetType == "" || entry.Summary == "" {
		return
	}

	if entry.Diff != nil && entry.Diff.Empty() {
		return
	}

	entry.Action = Truncate(entry.Action, MaxActionLen)
	entry.TargetType = Truncate(entry.TargetType, MaxTargetTypeLen)
	entry.Summary = Truncate(entry.Summary, MaxSummaryLen)

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	if entry.CreatedAt == nil {
		now := r.now()
		entry.CreatedAt = &now
	}

	if err := r.store.Create(ctx, &entry); err != nil {
		r.logger.Warn("audit write dropped", "action", entry.Action, "error", err)
	}
}

// ListRecent returns the most recent entries, optionally filtered by action.
func (r *Recorder) ListRecent(ctx context.Context, limit int, actions ...string) ([]*Entry, error) {
	return r.store.ListRecent(ctx, limit, actions...)
}

// Truncate bounds a string to max runes. It never fails; short strings are
// returned unchanged.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUDIT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUDIT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUDIT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUDIT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
