// Package service contains the application services that sit between the
// transport layer and the task machinery. TaskService owns the task
// lifecycle: it validates incoming requests, persists tasks, hands them to
// the queue, and coordinates cancellation and progress subscriptions.
package service
