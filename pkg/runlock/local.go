package runlock

import (
	"context"
	"sync"
)

// Local is an in-process Guard. A second WithLease on a held key fails
// with ErrBusy instead of waiting.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ Guard = (*Local)(nil)

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if _, ok := l.held[key]; ok {
		l.mu.Unlock()
		return ErrBusy
	}
	l.held[key] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()
	return fn(ctx)
}
