// Package queue schedules song generation work with bounded concurrency.
//
// Tasks wait in FIFO order for a processing slot. Each slot runs the
// generation pipeline for one task, consuming its progress stream lazily and
// applying every update to the task store, which fans the change out to
// registered listeners. Failures that occur before the pipeline has yielded
// any update are retried; once progress has been made the task fails
// immediately, because the backend request is not idempotent.
package queue
