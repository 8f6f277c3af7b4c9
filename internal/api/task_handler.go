package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/songforge/agent-api/internal/api/shared"
	"github.com/songforge/agent-api/internal/domain"
	"github.com/songforge/agent-api/internal/notify"
	"github.com/songforge/agent-api/internal/service"
)

// TaskHandler handles the JSON-RPC task methods and the REST task endpoints.
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With("component", "task_handler"),
	}
}

// HandleRPC handles POST /rpc requests carrying a JSON-RPC 2.0 envelope.
func (h *TaskHandler) HandleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		respondRPCError(w, r, nil, codeInvalidRequest, "Invalid JSON-RPC request")
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		respondRPCError(w, r, req.ID, codeInvalidRequest, "Invalid JSON-RPC envelope")
		return
	}

	switch req.Method {
	case "tasks/send":
		h.rpcSendTask(w, r, req)
	case "tasks/sendSubscribe":
		h.rpcSendSubscribe(w, r, req)
	case "tasks/get":
		h.rpcGetTask(w, r, req)
	case "tasks/cancel":
		h.rpcCancelTask(w, r, req)
	case "tasks/pushNotification/set":
		h.rpcSetPushNotification(w, r, req)
	case "tasks/pushNotification/get":
		h.rpcGetPushNotification(w, r, req)
	default:
		respondRPCError(w, r, req.ID, codeMethodNotFound, "Method not found: "+req.Method)
	}
}

// rpcSendTask implements tasks/send: create the task and answer with the
// stored record right away; progress is retrieved separately.
func (h *TaskHandler) rpcSendTask(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	params, ok := h.decodeSendParams(w, r, req)
	if !ok {
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), params.SessionID, params.Message, params.Metadata)
	if err != nil {
		h.respondServiceError(w, r, req.ID, err)
		return
	}
	respondRPCResult(w, r, req.ID, task)
}

// rpcSendSubscribe implements tasks/sendSubscribe. SSE mode keeps the
// response open and streams progress events; webhook mode answers with the
// task ID and delivers progress to the registered callback.
func (h *TaskHandler) rpcSendSubscribe(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	params, ok := h.decodeSendParams(w, r, req)
	if !ok {
		return
	}

	mode := "sse"
	if params.Notification != nil && params.Notification.Mode != "" {
		mode = params.Notification.Mode
	}

	if mode == "webhook" {
		if params.Notification == nil || params.Notification.URL == "" {
			respondRPCError(w, r, req.ID, codeInvalidParams, "Webhook mode requires notification.url")
			return
		}
		task, err := h.taskService.CreateTaskWithWebhook(r.Context(),
			params.SessionID, params.Message, params.Metadata,
			notify.WebhookConfig{
				URL:        params.Notification.URL,
				Token:      params.Notification.Token,
				EventTypes: params.Notification.EventTypes,
			})
		if err != nil {
			h.respondServiceError(w, r, req.ID, err)
			return
		}
		respondRPCResult(w, r, req.ID, taskCreatedResponse{TaskID: task.ID})
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), params.SessionID, params.Message, params.Metadata)
	if err != nil {
		h.respondServiceError(w, r, req.ID, err)
		return
	}

	events, unsubscribe, err := h.taskService.Subscribe(r.Context(), task.ID)
	if err != nil {
		h.respondServiceError(w, r, req.ID, err)
		return
	}
	streamEvents(w, r, events, unsubscribe, h.logger.With("task_id", task.ID))
}

// rpcGetTask implements tasks/get.
func (h *TaskHandler) rpcGetTask(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	params, ok := h.decodeTaskIDParams(w, r, req)
	if !ok {
		return
	}
	task, err := h.taskService.GetTask(r.Context(), params.TaskID)
	if err != nil {
		h.respondServiceError(w, r, req.ID, err)
		return
	}
	respondRPCResult(w, r, req.ID, task)
}

// rpcCancelTask implements tasks/cancel.
func (h *TaskHandler) rpcCancelTask(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	params, ok := h.decodeTaskIDParams(w, r, req)
	if !ok {
		return
	}
	task, err := h.taskService.CancelTask(r.Context(), params.TaskID)
	if err != nil {
		h.respondServiceError(w, r, req.ID, err)
		return
	}
	respondRPCResult(w, r, req.ID, task)
}

// rpcSetPushNotification implements tasks/pushNotification/set.
func (h *TaskHandler) rpcSetPushNotification(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params pushNotificationParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		respondRPCError(w, r, req.ID, codeInvalidParams, "Invalid params")
		return
	}
	if err := shared.ValidateRequest(params); err != nil {
		respondRPCError(w, r, req.ID, codeInvalidParams, "Validation error: "+err.Error())
		return
	}
	if err := h.taskService.RegisterWebhook(r.Context(), params.TaskID, params.webhookConfig()); err != nil {
		h.respondServiceError(w, r, req.ID, err)
		return
	}
	respondRPCResult(w, r, req.ID, params)
}

// rpcGetPushNotification implements tasks/pushNotification/get.
func (h *TaskHandler) rpcGetPushNotification(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	params, ok := h.decodeTaskIDParams(w, r, req)
	if !ok {
		return
	}
	config, err := h.taskService.GetWebhook(r.Context(), params.TaskID)
	if err != nil {
		h.respondServiceError(w, r, req.ID, err)
		return
	}
	respondRPCResult(w, r, req.ID, config)
}

// GetTask handles GET /tasks/{taskID} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := h.taskService.GetTask(r.Context(), taskID)
	if err != nil {
		h.respondRESTError(w, r, err, "Failed to load task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// ListTasks handles GET /tasks requests with an optional session_id filter.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	tasks, err := h.taskService.ListTasks(r.Context(), sessionID)
	if err != nil {
		h.respondRESTError(w, r, err, "Failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskListResponse{Tasks: tasks})
}

// GetTaskHistory handles GET /tasks/{taskID}/history requests.
func (h *TaskHandler) GetTaskHistory(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	history, err := h.taskService.GetTaskHistory(r.Context(), taskID)
	if err != nil {
		h.respondRESTError(w, r, err, "Failed to load task history")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskHistoryResponse{TaskID: taskID, History: history})
}

// StreamTaskNotifications handles GET /tasks/{taskID}/notifications: an SSE
// stream of the task's progress events.
func (h *TaskHandler) StreamTaskNotifications(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	events, unsubscribe, err := h.taskService.Subscribe(r.Context(), taskID)
	if err != nil {
		h.respondRESTError(w, r, err, "Failed to subscribe to task")
		return
	}
	streamEvents(w, r, events, unsubscribe, h.logger.With("task_id", taskID))
}

// RegisterTaskWebhook handles POST /tasks/{taskID}/notifications: registers
// a webhook callback for the task.
func (h *TaskHandler) RegisterTaskWebhook(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var config notify.WebhookConfig
	if err := shared.DecodeJSON(r, &config); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(config); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.taskService.RegisterWebhook(r.Context(), taskID, config); err != nil {
		h.respondRESTError(w, r, err, "Failed to register webhook")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, taskCreatedResponse{TaskID: taskID})
}

// decodeSendParams parses and validates the params of tasks/send and
// tasks/sendSubscribe.
func (h *TaskHandler) decodeSendParams(w http.ResponseWriter, r *http.Request, req rpcRequest) (sendTaskParams, bool) {
	var params sendTaskParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		respondRPCError(w, r, req.ID, codeInvalidParams, "Invalid params")
		return params, false
	}
	if err := shared.ValidateRequest(params); err != nil {
		respondRPCError(w, r, req.ID, codeInvalidParams, "Validation error: "+err.Error())
		return params, false
	}
	return params, true
}

// decodeTaskIDParams parses and validates params carrying a task ID.
func (h *TaskHandler) decodeTaskIDParams(w http.ResponseWriter, r *http.Request, req rpcRequest) (taskIDParams, bool) {
	var params taskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		respondRPCError(w, r, req.ID, codeInvalidParams, "Invalid params")
		return params, false
	}
	if err := shared.ValidateRequest(params); err != nil {
		respondRPCError(w, r, req.ID, codeInvalidParams, "Validation error: "+err.Error())
		return params, false
	}
	return params, true
}

// respondServiceError maps service errors onto JSON-RPC error codes.
func (h *TaskHandler) respondServiceError(w http.ResponseWriter, r *http.Request, id json.RawMessage, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		respondRPCError(w, r, id, codeInvalidParams, err.Error())
	case errors.Is(err, service.ErrTaskNotFound):
		respondRPCError(w, r, id, codeInvalidParams, "Task not found")
	case errors.Is(err, service.ErrTaskNotCancelable):
		respondRPCError(w, r, id, codeInvalidParams, err.Error())
	default:
		h.logger.Error("task operation failed", "error", err)
		respondRPCError(w, r, id, codeInternalError, "Internal error")
	}
}

// respondRESTError maps service errors onto HTTP status codes.
func (h *TaskHandler) respondRESTError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
	case errors.Is(err, service.ErrInvalidRequest):
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTaskNotCancelable):
		shared.RespondWithError(w, r, http.StatusConflict, err.Error())
	default:
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, message, err)
	}
}
