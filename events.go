package tanglr

import (
	"sync"
	"time"

	"github.com/artyultra/tanglr-client/session"
)

// SessionInvalidatedEvent describes a session lost to a failed refresh.
type SessionInvalidatedEvent struct {
	UserID   string
	Username string
	Cause    error
	At       time.Time
}

// Subscription is a registered observer. Unsubscribe is idempotent.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the observer.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

type observer[E any] struct {
	id uint64
	fn func(E)
}

type observerList[E any] struct {
	mu     sync.Mutex
	nextID uint64
	items  []observer[E]
}

func (l *observerList[E]) add(fn func(E)) *Subscription {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.items = append(l.items, observer[E]{id: id, fn: fn})
	l.mu.Unlock()

	return &Subscription{cancel: func() { l.remove(id) }}
}

func (l *observerList[E]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, o := range l.items {
		if o.id == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return
		}
	}
}

func (l *observerList[E]) clear() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
}

func (l *observerList[E]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// notify calls every observer in registration order, outside the lock, so
// handlers may call back into the client.
func (l *observerList[E]) notify(ev E) {
	l.mu.Lock()
	items := make([]observer[E], len(l.items))
	copy(items, l.items)
	l.mu.Unlock()

	for _, o := range items {
		o.fn(ev)
	}
}

type observers struct {
	invalidated observerList[SessionInvalidatedEvent]
	updated     observerList[session.Session]
}

func (o *observers) clear() {
	o.invalidated.clear()
	o.updated.clear()
}

// OnSessionInvalidated registers fn to run once for every refresh failure that
// ends the session. fn runs on the goroutine that drove the refresh, before
// waiting callers receive ErrSessionExpired.
func (c *Client) OnSessionInvalidated(fn func(SessionInvalidatedEvent)) *Subscription {
	return c.observers.invalidated.add(fn)
}

// OnSessionUpdated registers fn to run after a login or refresh stores a new
// session.
func (c *Client) OnSessionUpdated(fn func(session.Session)) *Subscription {
	return c.observers.updated.add(fn)
}
