package generation

import (
	"context"
	"sync/atomic"

	"github.com/songforge/agent-api/internal/domain"
)

// Update is one element of a task's progress sequence: a status to apply,
// optionally with artifacts produced by it and metadata fields the pipeline
// resolved.
type Update struct {
	Status    domain.TaskStatus
	Artifacts []domain.TaskArtifact
	Metadata  map[string]any
}

// Terminal reports whether the update ends the task's lifecycle.
func (u *Update) Terminal() bool {
	return u.Status.State.Terminal()
}

// Stream is a lazy, finite, non-restartable sequence of progress updates.
// Next blocks until the producer yields the next update, the stream ends
// (ErrStreamDone), the producer fails, or ctx is done. Cancel sets an
// advisory flag that producers check between yields; a well-behaved producer
// reacts by emitting a cancelled update at its next safe point.
type Stream interface {
	Next(ctx context.Context) (*Update, error)
	Cancel()
}

// Pipeline turns a task's prompt and metadata into a stream of progress
// updates. Generate returns an error only for failures occurring before any
// update was produced; such failures are retryable by the caller.
type Pipeline interface {
	Generate(ctx context.Context, task *domain.Task) (Stream, error)
}

// streamItem carries either an update or a producer-side error.
type streamItem struct {
	update *Update
	err    error
}

// UpdateStream is the channel-backed Stream used by pipeline producers.
// A producer goroutine calls Emit for each update, optionally Fail once, and
// finally Close exactly once; consumers call Next.
type UpdateStream struct {
	items     chan streamItem
	cancelled atomic.Bool
}

// NewUpdateStream creates an unbuffered stream: each Emit rendezvouses with
// the consumer's Next, which is what makes the sequence lazy.
func NewUpdateStream() *UpdateStream {
	return &UpdateStream{items: make(chan streamItem)}
}

// Next returns the next update in the sequence. It returns ErrStreamDone
// after the producer closed the stream, the producer's error after Fail, or
// ctx.Err() if the context ends first.
func (s *UpdateStream) Next(ctx context.Context) (*Update, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case item, ok := <-s.items:
		if !ok {
			return nil, ErrStreamDone
		}
		return item.update, item.err
	}
}

// Emit hands one update to the consumer. It returns ctx.Err() if the context
// ends before the consumer accepts the update, which tells the producer to
// stop.
func (s *UpdateStream) Emit(ctx context.Context, update *Update) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.items <- streamItem{update: update}:
		return nil
	}
}

// Fail delivers a producer error to the consumer. The producer must return
// and let its deferred Close end the stream.
func (s *UpdateStream) Fail(ctx context.Context, err error) {
	select {
	case <-ctx.Done():
	case s.items <- streamItem{err: err}:
	}
}

// Close ends the stream normally.
func (s *UpdateStream) Close() {
	close(s.items)
}

// Cancel requests cooperative cancellation. The producer observes the flag
// via Cancelled between yields.
func (s *UpdateStream) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether cancellation has been requested.
func (s *UpdateStream) Cancelled() bool {
	return s.cancelled.Load()
}
