// Package notify fans task progress out to clients.
//
// Two delivery paths exist, both fed by task store update notifications: a
// StreamHub that pushes events to in-process subscriber channels (served to
// clients as server-sent events), and a WebhookNotifier that POSTs events to
// a callback URL registered per task. Dispatch never blocks the store's
// update path: slow stream subscribers are skipped and webhook deliveries
// happen on their own goroutine.
package notify
