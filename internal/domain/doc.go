// Package domain contains the core entities of the song generation agent:
// tasks, their lifecycle states and status history, request messages, and
// result artifacts. These types carry no infrastructure dependencies and are
// shared by the store, queue, notification, and API layers.
package domain
