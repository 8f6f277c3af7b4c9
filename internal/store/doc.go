// Package store provides the authoritative task repository and its change
// notification mechanism.
//
// The store is the single source of truth for task records: every mutation
// goes through UpdateTask, which appends to the task's status history and
// synchronously notifies registered listeners in registration order. A
// listener failure is contained at the notification point and never affects
// the write or other listeners.
//
// The implementation is in-memory by design: persistence across process
// restarts is out of scope for this agent, and no eviction policy is applied
// (completed tasks accumulate until explicitly deleted).
package store
