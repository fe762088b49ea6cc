package game

import "sync"

// mailbox is an unbounded queue with a wakeup channel. Producers never block,
// so a runner can report to its game while the game waits on that runner.
type mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{notify: make(chan struct{}, 1)}
}

func (m *mailbox[T]) put(v T) {
	m.mu.Lock()
	m.items = append(m.items, v)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.items
	m.items = nil
	return out
}

func (m *mailbox[T]) ready() <-chan struct{} {
	return m.notify
}
