package driver

import "sync"

// Listeners is a registration set shared by driver implementations.
// Registering the same listener twice keeps a single entry.
type Listeners struct {
	mu   sync.RWMutex
	list []Listener
}

func (l *Listeners) Add(x Listener) {
	if x == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, y := range l.list {
		if y == x {
			return
		}
	}
	l.list = append(l.list, x)
}

func (l *Listeners) Remove(x Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, y := range l.list {
		if y == x {
			l.list = append(l.list[:i:i], l.list[i+1:]...)
			return
		}
	}
}

// Len is the number of registered listeners.
func (l *Listeners) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.list)
}

// Each calls fn for a snapshot of the registered listeners.
func (l *Listeners) Each(fn func(Listener)) {
	l.mu.RLock()
	snap := append([]Listener(nil), l.list...)
	l.mu.RUnlock()
	for _, x := range snap {
		fn(x)
	}
}
