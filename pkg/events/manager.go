// Package events lets components learn that something changed without
// polling for it. Delivery is coalescing: a watcher that has not drained its
// channel yet only ever sees one pending event.
package events

import (
	"sync"
)

// Manager fans emitted events out to every registered Watcher.
type Manager struct {
	mutex    sync.RWMutex
	watchers map[*Watcher]struct{}
}

// Watch registers a new Watcher. Call Stop on it when done.
func (m *Manager) Watch() *Watcher {
	watcher := &Watcher{
		Ch:   make(chan Event, 1),
		stop: m.stop,
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.watchers == nil {
		m.watchers = map[*Watcher]struct{}{}
	}
	m.watchers[watcher] = struct{}{}

	return watcher
}

// Emit never blocks: watchers with an undelivered event keep that one.
func (m *Manager) Emit(event Event) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for watcher := range m.watchers {
		select {
		case watcher.Ch <- event:
		default:
		}
	}
}

func (m *Manager) stop(watcher *Watcher) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.watchers[watcher]; ok {
		delete(m.watchers, watcher)
		close(watcher.Ch)
	}
}
