package api

import (
	"github.com/songforge/agent-api/internal/domain"
	"github.com/songforge/agent-api/internal/notify"
)

// notificationParams selects the delivery mode for tasks/sendSubscribe.
// Mode defaults to sse; webhook mode requires a callback URL.
type notificationParams struct {
	Mode       string             `json:"mode,omitempty" validate:"omitempty,oneof=sse webhook"`
	URL        string             `json:"url,omitempty" validate:"omitempty,url"`
	Token      string             `json:"token,omitempty"`
	EventTypes []notify.EventType `json:"eventTypes,omitempty"`
}

// sendTaskParams is the params object of tasks/send and tasks/sendSubscribe.
type sendTaskParams struct {
	SessionID    string              `json:"sessionId,omitempty"`
	Message      *domain.Message     `json:"message" validate:"required"`
	Metadata     map[string]any      `json:"metadata,omitempty"`
	Notification *notificationParams `json:"notification,omitempty"`
}

// taskIDParams is the params object of task lookup and cancel methods.
type taskIDParams struct {
	TaskID string `json:"taskId" validate:"required"`
}

// pushNotificationParams is the params object of tasks/pushNotification/set.
type pushNotificationParams struct {
	TaskID     string             `json:"taskId" validate:"required"`
	URL        string             `json:"url" validate:"required,url"`
	Token      string             `json:"token,omitempty"`
	EventTypes []notify.EventType `json:"eventTypes,omitempty"`
}

// taskCreatedResponse is returned by tasks/sendSubscribe in webhook mode,
// where delivery happens out of band.
type taskCreatedResponse struct {
	TaskID string `json:"taskId"`
}

// taskListResponse wraps the task list endpoint payload.
type taskListResponse struct {
	Tasks []*domain.Task `json:"tasks"`
}

// taskHistoryResponse wraps a task's ordered status history.
type taskHistoryResponse struct {
	TaskID  string              `json:"taskId"`
	History []domain.TaskStatus `json:"history"`
}

// webhookConfig converts registration params into the notifier's config.
func (p pushNotificationParams) webhookConfig() notify.WebhookConfig {
	return notify.WebhookConfig{
		URL:        p.URL,
		Token:      p.Token,
		EventTypes: p.EventTypes,
	}
}
