// Package notify queues user-facing notifications for a browser session.
// Notifications are drained by the handler and rendered as toasts.
package notify

import "sync"

// Type is the visual kind of a notification.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Notification is a single toast.
type Notification struct {
	Type        Type
	Title       string
	Message     string
	AutoDismiss bool
}

// DefaultCapacity is used when NewQueue is given a non-positive capacity.
const DefaultCapacity = 16

// Queue holds pending notifications. When full, the oldest entry is dropped.
// It is safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	cap   int
}

// NewQueue creates an empty queue holding at most capacity notifications.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{cap: capacity}
}

// AddNotification enqueues n. Success notifications dismiss themselves.
func (q *Queue) AddNotification(n Notification) {
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if n.Type == TypeSuccess {
		n.AutoDismiss = true
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == q.cap {
		q.items = q.items[1:]
	}
	q.items = append(q.items, n)
}

// Drain returns and removes every pending notification, oldest first.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len returns the number of pending notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
