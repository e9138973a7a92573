// Package broadcast provides a publish/subscribe channel over a single value.
package broadcast

import "sync"

// Topic fans the latest value out to subscribers. Each subscriber holds at
// most one undelivered value: a slow subscriber sees only the newest one and
// never blocks Publish. Subscribers must tolerate missed intermediate values.
type Topic[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	latest T
	has    bool
}

// NewTopic creates an empty topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{subs: make(map[int]chan T)}
}

// Publish stores v as the latest value and offers it to every subscriber.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest, t.has = v, true
	for _, ch := range t.subs {
		offer(ch, v)
	}
}

// Subscribe returns a channel that receives published values, starting with
// the current one if any. cancel closes the channel; it is safe to call twice.
func (t *Topic[T]) Subscribe() (<-chan T, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan T, 1)
	if t.has {
		ch <- t.latest
	}
	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Latest returns the last published value.
func (t *Topic[T]) Latest() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.has
}

// Subscribers returns the number of active subscriptions.
func (t *Topic[T]) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// offer replaces a stale buffered value with v. Caller must hold the topic lock,
// which makes this the only sender on ch.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
