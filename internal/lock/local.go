package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type localEntry struct {
	sem  chan struct{}
	refs int
}

// Local is an in-process Locker. Entries are reference counted and removed
// once nobody holds or waits for them.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
	wait  time.Duration
}

// NewLocal creates an in-process locker. A non-positive wait blocks until
// the context is done.
func NewLocal(wait time.Duration) *Local {
	return &Local{locks: make(map[string]*localEntry), wait: wait}
}

func (l *Local) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	entry := l.acquire(key)

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key)
		return nil, ctx.Err()
	case <-timeout:
		l.release(key)
		return nil, fmt.Errorf("lock %q: %w", key, ErrTimeout)
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-entry.sem
			l.release(key)
		})
		return nil
	}, nil
}

// acquire gets or creates the entry for key and takes a reference.
func (l *Local) acquire(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok {
		entry = &localEntry{sem: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *Local) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}

// size returns the number of live entries.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
