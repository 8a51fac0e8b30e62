package lock

import (
	"context"
	"sync"
)

// Keyed serializes work per key. Different keys never block each other.
type Keyed struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{slots: make(map[string]*slot)}
}

// Lock waits for key or for ctx to end. The returned func releases the key.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return func() {
			<-s.ch
			k.release(key, s)
		}, nil
	case <-ctx.Done():
		k.release(key, s)
		return nil, ctx.Err()
	}
}

func (k *Keyed) release(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// Len reports how many keys are held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
