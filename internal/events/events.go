package events

import (
	"context"
	"sync"
)

type Kind string

const (
	KindHabit         Kind = "habit"
	KindHomeTask      Kind = "home_task"
	KindWorkTask      Kind = "work_task"
	KindProjectAction Kind = "project_action"
	KindFocus         Kind = "focus"
)

type Event interface {
	User() string
}

// EntityCompleted is published after the completion is stored remotely.
// Day is the completion date in the user's timezone (YYYY-MM-DD).
type EntityCompleted struct {
	UserID   string
	Kind     Kind
	EntityID string
	Minutes  int
	Day      string
}

type EntityAdded struct {
	UserID   string
	Kind     Kind
	EntityID string
}

// SessionStarted and SessionEnded are relayed between instances.
// Remote is set on events received from another instance.
type SessionStarted struct {
	UserID string
	Remote bool
}

type SessionEnded struct {
	UserID string
	Remote bool
}

func (e EntityCompleted) User() string { return e.UserID }
func (e EntityAdded) User() string     { return e.UserID }
func (e SessionStarted) User() string  { return e.UserID }
func (e SessionEnded) User() string    { return e.UserID }

type Handler func(ctx context.Context, e Event)

// Bus delivers events synchronously, in subscription order, on the publisher's goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, e)
	}
}
