package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/songforge/agent-api/internal/domain"
	"github.com/songforge/agent-api/internal/redact"
)

// defaultWebhookTimeout bounds a single webhook delivery attempt.
const defaultWebhookTimeout = 10 * time.Second

// WebhookConfig is a per-task callback registration. EventTypes filters what
// gets delivered; empty means every event type.
type WebhookConfig struct {
	URL        string      `json:"url" validate:"required,url"`
	Token      string      `json:"token,omitempty"`
	EventTypes []EventType `json:"eventTypes,omitempty"`
}

// wants reports whether the registration accepts the given event type.
func (c WebhookConfig) wants(eventType EventType) bool {
	if len(c.EventTypes) == 0 {
		return true
	}
	for _, t := range c.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// WebhookNotifier POSTs task progress events to registered callback URLs.
// Deliveries are fire-and-forget: failures are logged and never retried, and
// never affect the task itself.
type WebhookNotifier struct {
	client  *http.Client
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.RWMutex
	configs map[string]WebhookConfig
}

// NewWebhookNotifier creates a WebhookNotifier. A nil client gets a default
// one with a delivery timeout.
func NewWebhookNotifier(client *http.Client, logger *slog.Logger) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	return &WebhookNotifier{
		client:  client,
		logger:  logger.With("component", "webhook_notifier"),
		timeout: defaultWebhookTimeout,
		configs: make(map[string]WebhookConfig),
	}
}

// Register sets the callback for a task. A task has at most one callback;
// registering again replaces the previous one.
func (n *WebhookNotifier) Register(taskID string, config WebhookConfig) {
	n.mu.Lock()
	n.configs[taskID] = config
	n.mu.Unlock()
	n.logger.Info("webhook registered", "task_id", taskID, "url", config.URL)
}

// Config returns the callback registered for a task, if any.
func (n *WebhookNotifier) Config(taskID string) (WebhookConfig, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	config, ok := n.configs[taskID]
	return config, ok
}

// Remove drops a task's callback registration.
func (n *WebhookNotifier) Remove(taskID string) {
	n.mu.Lock()
	delete(n.configs, taskID)
	n.mu.Unlock()
}

// OnTaskUpdated implements store.TaskListener. Non-terminal updates become
// status_update deliveries; a terminal update becomes a single completion
// delivery carrying the final status and all artifacts.
func (n *WebhookNotifier) OnTaskUpdated(ctx context.Context, task *domain.Task, newArtifacts []domain.TaskArtifact) {
	config, ok := n.Config(task.ID)
	if !ok {
		return
	}

	var event Event
	if task.Status.State.Terminal() {
		event = NewCompletionEvent(task)
	} else {
		event = NewStatusEvent(task)
	}
	if !config.wants(event.Type) {
		return
	}

	// The store notifies listeners while holding its lock; deliver on a
	// separate goroutine so a slow endpoint cannot stall updates.
	go n.deliver(config, event)
}

// deliver POSTs one event to the callback URL.
func (n *WebhookNotifier) deliver(config WebhookConfig, event Event) {
	logger := n.logger.With("task_id", event.TaskID, "event_type", event.Type, "url", config.URL)

	body, err := json.Marshal(event)
	if err != nil {
		logger.Error("failed to encode webhook event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(body))
	if err != nil {
		logger.Error("failed to build webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+config.Token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Warn("webhook delivery failed", "error", redact.Error(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("webhook endpoint returned non-success status",
			"status", fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
		return
	}
	logger.Debug("webhook delivered")
}
