package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/songforge/agent-api/internal/domain"
)

// subscriberBufferSize is the per-subscriber event buffer. A subscriber whose
// buffer is full misses events rather than stalling dispatch.
const subscriberBufferSize = 16

// subscriber is one stream attached to a task.
type subscriber struct {
	ch     chan Event
	closed bool
}

// StreamHub tracks stream subscribers per task and forwards every store
// update to them as events. It registers as a task store listener; the store
// calls OnTaskUpdated synchronously, so delivery here is non-blocking.
type StreamHub struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[string]map[*subscriber]struct{}
}

// NewStreamHub creates an empty StreamHub.
func NewStreamHub(logger *slog.Logger) *StreamHub {
	return &StreamHub{
		logger:      logger.With("component", "stream_hub"),
		subscribers: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe attaches a new event stream to a task. The returned channel
// immediately carries an acknowledgement event with the task's current
// status, then every subsequent update. The hub closes the channel when the
// task reaches a terminal state; the returned cancel function detaches the
// subscriber early (safe to call after the hub already closed the channel).
func (h *StreamHub) Subscribe(task *domain.Task) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBufferSize)}

	h.mu.Lock()
	set, ok := h.subscribers[task.ID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subscribers[task.ID] = set
	}
	set[sub] = struct{}{}

	// Acknowledge with the current status so the client always sees at
	// least one event, even if the task finishes between store read and
	// subscription.
	sub.ch <- NewStatusEvent(task)
	if task.Status.State.Terminal() {
		sub.ch <- NewCompletionEvent(task)
		h.detachLocked(task.ID, sub)
	}
	h.mu.Unlock()

	h.logger.Debug("stream subscribed", "task_id", task.ID)

	cancel := func() {
		h.mu.Lock()
		h.detachLocked(task.ID, sub)
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// SubscriberCount returns the number of streams attached to a task.
func (h *StreamHub) SubscriberCount(taskID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[taskID])
}

// OnTaskUpdated implements store.TaskListener. It sends a status event, one
// artifact event per newly added artifact, and, on terminal states, a
// completion event before closing every subscriber channel.
func (h *StreamHub) OnTaskUpdated(ctx context.Context, task *domain.Task, newArtifacts []domain.TaskArtifact) {
	events := make([]Event, 0, len(newArtifacts)+2)
	events = append(events, NewStatusEvent(task))
	for _, artifact := range newArtifacts {
		events = append(events, NewArtifactEvent(task.ID, artifact))
	}
	terminal := task.Status.State.Terminal()
	if terminal {
		events = append(events, NewCompletionEvent(task))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subscribers[task.ID]
	for sub := range set {
		for _, event := range events {
			select {
			case sub.ch <- event:
			default:
				h.logger.Warn("dropping event for slow stream subscriber",
					"task_id", task.ID,
					"event_type", event.Type)
			}
		}
	}
	if terminal {
		for sub := range set {
			h.detachLocked(task.ID, sub)
		}
	}
}

// detachLocked removes one subscriber, closing its channel exactly once and
// dropping the task's set when it empties. Callers hold h.mu.
func (h *StreamHub) detachLocked(taskID string, sub *subscriber) {
	set, ok := h.subscribers[taskID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subscribers, taskID)
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}
