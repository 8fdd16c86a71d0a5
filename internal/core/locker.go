package core

import (
	"context"
	"sync"
)

// Locker serialises check-then-act sequences keyed by a string (a signature
// token). The returned release func must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// LocalLocker is an in-process Locker. It protects concurrent callers of one
// process only; sessions in other processes need a shared locker.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

// Acquire waits for key to be free or for ctx to end.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(key, slot)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.releaseRef(key, slot)
		})
	}, nil
}

func (l *LocalLocker) releaseRef(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
