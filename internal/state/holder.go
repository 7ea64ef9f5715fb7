package state

import (
	"context"
	"sync"
)

// Holder owns a user's snapshot. Every write clones, patches and swaps under the mutex,
// so values returned by Get are never modified afterwards.
type Holder struct {
	mu   sync.Mutex
	snap Snapshot
	gen  uint64
}

func NewHolder() *Holder {
	return &Holder{snap: Empty()}
}

func (h *Holder) Get() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap.Clone()
}

// Update applies patch to a copy of the snapshot and installs the copy.
func (h *Holder) Update(patch func(*Snapshot)) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.snap.Clone()
	patch(&next)
	h.snap = next
	return next.Clone()
}

// Clear drops all user data and returns to the auth screen.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snap = Empty()
	h.gen++
}

// BeginReload starts a reload generation. Only the newest generation may commit.
func (h *Holder) BeginReload() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen++
	return h.gen
}

// CommitReload installs build(current) if gen is still the newest reload.
// A stale reload is discarded and CommitReload reports false.
func (h *Holder) CommitReload(gen uint64, build func(current Snapshot) Snapshot) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if gen != h.gen {
		return false
	}
	h.snap = build(h.snap.Clone())
	return true
}

// Mutation describes an optimistic change: Apply runs before Remote, Revert runs if
// Remote fails, Commit runs with Remote's result if it succeeds.
type Mutation[T any] struct {
	Apply  func(s *Snapshot)
	Remote func(ctx context.Context) (T, error)
	Revert func(s *Snapshot)
	Commit func(s *Snapshot, result T)
}

// Tentative runs m against h. The remote call happens outside the holder's lock.
func Tentative[T any](ctx context.Context, h *Holder, m Mutation[T]) (T, error) {
	if m.Apply != nil {
		h.Update(m.Apply)
	}

	result, err := m.Remote(ctx)
	if err != nil {
		if m.Revert != nil {
			h.Update(m.Revert)
		}
		var zero T
		return zero, err
	}

	if m.Commit != nil {
		h.Update(func(s *Snapshot) { m.Commit(s, result) })
	}
	return result, nil
}
