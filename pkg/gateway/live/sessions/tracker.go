// Package sessions tracks live translation sessions for draining and
// readiness reporting.
package sessions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Session is the control surface the tracker needs from a live session.
type Session interface {
	Cancel()
	SendWarning(code, message string) error
}

// Info describes a tracked session.
type Info struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup
	now      func() time.Time
}

type entry struct {
	info    Info
	session Session
	once    sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Register adds s under id. A session already registered under the same id
// is dropped from the tracker. The returned func is idempotent.
func (t *Tracker) Register(id, remoteAddr string, s Session) (unregister func()) {
	if t == nil {
		return func() {}
	}

	now := time.Now
	if t.now != nil {
		now = t.now
	}
	e := &entry{
		info:    Info{ID: id, RemoteAddr: remoteAddr, StartedAt: now()},
		session: s,
	}

	t.mu.Lock()
	if t.sessions == nil {
		t.sessions = make(map[string]*entry)
	}
	old := t.sessions[id]
	t.sessions[id] = e
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(id, old)
	}

	return func() { t.unregister(id, e) }
}

func (t *Tracker) unregister(id string, e *entry) {
	if t == nil || e == nil {
		return
	}
	e.once.Do(func() {
		t.mu.Lock()
		if t.sessions[id] == e {
			delete(t.sessions, id)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Snapshot lists tracked sessions, oldest first.
func (t *Tracker) Snapshot() []Info {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	out := make([]Info, 0, len(t.sessions))
	for _, e := range t.sessions {
		out = append(out, e.info)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (t *Tracker) live() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Session, 0, len(t.sessions))
	for _, e := range t.sessions {
		if e.session != nil {
			out = append(out, e.session)
		}
	}
	return out
}

// NotifyAll sends a warning to every session. Delivery is best effort.
func (t *Tracker) NotifyAll(code, message string) (sent int) {
	if t == nil {
		return 0
	}
	for _, s := range t.live() {
		_ = s.SendWarning(code, message)
		sent++
	}
	return sent
}

func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}
	for _, s := range t.live() {
		s.Cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered session has unregistered or ctx ends.
// It reports whether all sessions finished.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
