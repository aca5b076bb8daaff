package fs

import (
	"path/filepath"
	"sync"
)

// Locker hands out one mutex per cleaned path, so a file is never rewritten
// by two editors at once. The zero value is ready to use.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock blocks until path is free and returns its unlock function.
func (l *Locker) Lock(path string) (unlock func()) {
	key := filepath.Clean(path)

	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
