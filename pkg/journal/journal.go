package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gravityhq/sentinel/pkg/guard"
)

// Entry is one journaled alert decision.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string

	// Time is when the decision was made.
	Time time.Time

	// ModelID and ModelLabel identify the quota behind the alert.
	ModelID    string
	ModelLabel string

	// Percentage is the remaining quota that triggered the decision.
	Percentage float64

	// Level is the severity classification ("warning", "critical", "blocked").
	Level string

	// Outcome is what the guard did ("prompted", "fallback_notice",
	// "suppressed").
	Outcome string

	// Choice is the user's answer for prompted outcomes, empty otherwise.
	Choice string

	// Allowed is the recommendation returned to the caller.
	Allowed bool
}

// Storage persists journal entries.
type Storage interface {
	Append(ctx context.Context, entry *Entry) error
	Recent(ctx context.Context, limit int) ([]*Entry, error)
	Close() error
}

// Recorder receives guard alert events and writes them asynchronously.
// It implements guard.EventSink.
type Recorder struct {
	storage Storage
	entries chan *Entry
	logger  *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRecorder creates a recorder and starts its writer goroutine.
// If bufferSize is 0, defaults to 256.
func NewRecorder(storage Storage, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}

	r := &Recorder{
		storage: storage,
		entries: make(chan *Entry, bufferSize),
		logger:  slog.Default().With("component", "journal"),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go r.writeLoop()
	return r
}

// RecordAlert enqueues an alert event for journaling. It never blocks: a
// full buffer drops the entry with a warning rather than stalling the
// guard's decision path.
func (r *Recorder) RecordAlert(ctx context.Context, event guard.AlertEvent) {
	entry := &Entry{
		ID:         uuid.New().String(),
		Time:       event.Time,
		ModelID:    event.ModelID,
		ModelLabel: event.ModelLabel,
		Percentage: event.Percentage,
		Level:      event.Level.String(),
		Outcome:    event.Outcome,
		Choice:     event.Choice,
		Allowed:    event.Allowed,
	}

	select {
	case r.entries <- entry:
	default:
		r.logger.Warn("journal buffer full, dropping entry", "model", entry.ModelID, "outcome", entry.Outcome)
	}
}

// Recent returns the most recent entries, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	return r.storage.Recent(ctx, limit)
}

// Close drains pending entries and closes the storage.
func (r *Recorder) Close() error {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.doneCh
	})
	return r.storage.Close()
}

func (r *Recorder) writeLoop() {
	defer close(r.doneCh)
	for {
		select {
		case entry := <-r.entries:
			r.write(entry)
		case <-r.stopCh:
			// Drain whatever is already buffered.
			for {
				select {
				case entry := <-r.entries:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.storage.Append(ctx, entry); err != nil {
		r.logger.Warn("failed to journal alert decision", "entry_id", entry.ID, "error", err)
	}
}
