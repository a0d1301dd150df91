package plugin

import (
	"errors"
	"reflect"
	"sync"

	"github.com/dkoosis/mdreport/pkg/report"
)

// Manager fans session events out to registered listeners in registration
// order.
type Manager struct {
	mu        sync.RWMutex
	listeners []report.Listener
}

var _ report.Listener = (*Manager)(nil)

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds l. Nil listeners and repeats are ignored. Repeats are only
// detected for comparable listeners, such as pointers.
func (m *Manager) Register(l report.Listener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.listeners {
		if sameListener(have, l) {
			return
		}
	}
	m.listeners = append(m.listeners, l)
}

// Unregister removes l and reports whether it was registered. A listener
// whose type is not comparable can never be matched, so it stays registered.
func (m *Manager) Unregister(l report.Listener) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, have := range m.listeners {
		if sameListener(have, l) {
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// sameListener compares listeners without panicking on types that do not
// support ==.
func sameListener(a, b report.Listener) bool {
	ta := reflect.TypeOf(a)
	return ta == reflect.TypeOf(b) && ta.Comparable() && a == b
}

// Len returns the number of registered listeners.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners)
}

func (m *Manager) snapshot() []report.Listener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]report.Listener(nil), m.listeners...)
}

// SessionStart forwards to every listener.
func (m *Manager) SessionStart(collected int) {
	for _, l := range m.snapshot() {
		l.SessionStart(collected)
	}
}

// AddCollected forwards n to every listener that accepts late collection.
func (m *Manager) AddCollected(n int) {
	for _, l := range m.snapshot() {
		if a, ok := l.(report.CollectedAdder); ok {
			a.AddCollected(n)
		}
	}
}

// LogReport forwards r to every listener. One listener failing does not stop
// the others; all errors are joined.
func (m *Manager) LogReport(r report.PhaseResult) error {
	var errs []error
	for _, l := range m.snapshot() {
		if err := l.LogReport(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SessionFinish forwards to every listener and joins their errors.
func (m *Manager) SessionFinish() error {
	var errs []error
	for _, l := range m.snapshot() {
		if err := l.SessionFinish(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
