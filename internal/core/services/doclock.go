package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// keyedMutex serializes work per key within one process.
// Entries are reference counted and removed once no caller holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	slots map[string]*keySlot
}

type keySlot struct {
	sem  chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{slots: make(map[string]*keySlot)}
}

// lock blocks until key is free or ctx is done.
func (k *keyedMutex) lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	slot, ok := k.slots[key]
	if !ok {
		slot = &keySlot{sem: make(chan struct{}, 1)}
		k.slots[key] = slot
	}
	slot.refs++
	k.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
		return func() {
			<-slot.sem
			k.release(key, slot)
		}, nil
	case <-ctx.Done():
		k.release(key, slot)
		return nil, ctx.Err()
	}
}

func (k *keyedMutex) release(key string, slot *keySlot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(k.slots, key)
	}
}

// size returns the number of tracked keys
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

// documentLocker serializes ingestion per document ID: first in-process,
// then across instances when a distributed lock is configured.
type documentLocker struct {
	local  *keyedMutex
	remote func() driven.DistributedLock
	ttl    time.Duration
	renew  time.Duration
	wait   time.Duration
	poll   time.Duration
	logger *slog.Logger
}

func lockName(documentID string) string {
	return "ingest:" + documentID
}

// lock returns a release func once the document is exclusively held.
// Returns domain.ErrLockNotAcquired if another instance keeps the
// distributed lock for longer than the configured wait.
//
// While a distributed lock is held its TTL is extended in the background.
// The returned context is cancelled with a domain.ErrLockNotAcquired cause
// if an extension fails, since another instance may then take the lock.
func (l *documentLocker) lock(ctx context.Context, documentID string) (context.Context, func(), error) {
	unlockLocal, err := l.local.lock(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	var remote driven.DistributedLock
	if l.remote != nil {
		remote = l.remote()
	}
	if remote == nil {
		return ctx, unlockLocal, nil
	}

	name := lockName(documentID)
	deadline := time.Now().Add(l.wait)
	for {
		acquired, err := remote.Acquire(ctx, name, l.ttl)
		if err != nil {
			unlockLocal()
			return nil, nil, fmt.Errorf("acquire %s: %w", name, err)
		}
		if acquired {
			break
		}
		if time.Now().After(deadline) {
			unlockLocal()
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrLockNotAcquired, name)
		}
		select {
		case <-time.After(l.poll):
		case <-ctx.Done():
			unlockLocal()
			return nil, nil, ctx.Err()
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go l.heartbeat(leaseCtx, cancel, remote, name, done, stopped)

	return leaseCtx, func() {
		close(done)
		<-stopped

		// Release even if the caller's context was cancelled
		releaseCtx, cancelRelease := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancelRelease()
		if err := remote.Release(releaseCtx, name); err != nil {
			l.logger.Warn("failed to release document lock", "document_id", documentID, "error", err)
		}
		unlockLocal()
		cancel(nil)
	}, nil
}

// heartbeat extends the lease every renew interval until done is closed.
func (l *documentLocker) heartbeat(ctx context.Context, cancel context.CancelCauseFunc, remote driven.DistributedLock, name string, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	interval := l.renew
	if interval <= 0 {
		interval = l.ttl / 3
	}
	if interval <= 0 {
		<-done
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := remote.Extend(ctx, name, l.ttl); err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("document lock lease lost", "lock", name, "error", err)
				cancel(fmt.Errorf("%w: lease on %s lost: %v", domain.ErrLockNotAcquired, name, err))
				return
			}
		}
	}
}
