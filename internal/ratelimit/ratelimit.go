// Package ratelimit implements named token-bucket admission control, one
// bucket per external service ("search", "llm", ...). Acquire blocks the
// calling goroutine until a token is available, subject to a bounded FIFO
// wait queue and a maximum wait time.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clawdia-sh/research-core/internal/errkind"
)

// Bucket holds the token-bucket state for a single named service.
type Bucket struct {
	Capacity      float64
	RefillPerSec  float64
	tokens        float64
	lastRefillNs  int64
	maxQueueDepth int
	maxWait       time.Duration

	mu      sync.Mutex
	waiting int
	queue   []*ticket
}

// Config describes how a bucket should be constructed.
type Config struct {
	Capacity      float64
	RefillPerSec  float64
	MaxQueueDepth int
	MaxWait       time.Duration
}

// Registry owns a set of named buckets, constructed lazily on first use.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
	configs map[string]Config
}

// NewRegistry builds a registry with the given per-service configs. A
// service not present in cfgs gets a generous default on first Acquire.
func NewRegistry(cfgs map[string]Config) *Registry {
	return &Registry{
		buckets: make(map[string]*Bucket),
		configs: cfgs,
	}
}

func (r *Registry) bucketFor(service string) *Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buckets[service]; ok {
		return b
	}
	cfg, ok := r.configs[service]
	if !ok {
		cfg = Config{Capacity: 10, RefillPerSec: 2, MaxQueueDepth: 50, MaxWait: 30 * time.Second}
	}
	b := &Bucket{
		Capacity:      cfg.Capacity,
		RefillPerSec:  cfg.RefillPerSec,
		tokens:        cfg.Capacity,
		lastRefillNs:  time.Now().UnixNano(),
		maxQueueDepth: cfg.MaxQueueDepth,
		maxWait:       cfg.MaxWait,
	}
	r.buckets[service] = b
	return b
}

// Acquire blocks until a token for the named service is available, the
// queue is full (returns errkind.ErrRateLimited wrapping "queue_full"), the
// max wait elapses (errkind.ErrTimeout), or ctx is cancelled
// (errkind.ErrCancelled). On success it consumes exactly one token.
func (r *Registry) Acquire(ctx context.Context, service string) error {
	return r.bucketFor(service).acquire(ctx)
}

// FIFO ordering is enforced by a ticket queue: each waiter appends its ticket
// to the bucket's queue under the bucket mutex, then parks on the ticket's
// size-1 channel until it is at the head of the queue and is signalled to
// check the refill clock. Tickets resolve strictly in the order they were
// queued.
type ticket struct {
	ch chan struct{}
}

func (b *Bucket) acquire(ctx context.Context) error {
	b.mu.Lock()
	b.refillLocked()
	if b.tokens >= 1 && b.waiting == 0 {
		b.tokens--
		b.mu.Unlock()
		return nil
	}
	if b.waiting >= b.maxQueueDepth {
		b.mu.Unlock()
		return fmt.Errorf("queue_full: %w", errkind.ErrRateLimited)
	}
	b.waiting++
	myTicket := &ticket{ch: make(chan struct{}, 1)}
	b.queue = append(b.queue, myTicket)
	b.wakeNextLocked()
	b.mu.Unlock()

	deadline := time.NewTimer(b.maxWait)
	defer deadline.Stop()

	for {
		select {
		case <-myTicket.ch:
			b.mu.Lock()
			b.refillLocked()
			if b.tokens >= 1 {
				b.tokens--
				b.dequeueLocked(myTicket)
				b.mu.Unlock()
				return nil
			}
			// Not enough token yet; re-park at the head and retry shortly.
			wait := b.refillWaitLocked()
			b.mu.Unlock()
			select {
			case <-time.After(wait):
				b.mu.Lock()
				b.wakeNextLocked()
				b.mu.Unlock()
			case <-ctx.Done():
				b.removeWaiter(myTicket)
				return errkind.ErrCancelled
			case <-deadline.C:
				b.removeWaiter(myTicket)
				return errkind.ErrTimeout
			}
		case <-ctx.Done():
			b.removeWaiter(myTicket)
			return errkind.ErrCancelled
		case <-deadline.C:
			b.removeWaiter(myTicket)
			return errkind.ErrTimeout
		}
	}
}

func (b *Bucket) removeWaiter(t *ticket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dequeueLocked(t)
}

// dequeueLocked removes t from the queue, decrements waiting, and wakes the
// new head so the next waiter in FIFO order gets a chance to re-check the
// bucket. Must be called with b.mu held; safe to call whether the waiter
// resolved (token acquired) or was withdrawn (cancel/timeout).
func (b *Bucket) dequeueLocked(t *ticket) {
	for i, q := range b.queue {
		if q == t {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			b.waiting--
			break
		}
	}
	b.wakeNextLocked()
}

// wakeNextLocked signals the head of the queue, if any, that it should
// re-check the bucket. Must be called with b.mu held.
func (b *Bucket) wakeNextLocked() {
	if len(b.queue) == 0 {
		return
	}
	head := b.queue[0]
	select {
	case head.ch <- struct{}{}:
	default:
	}
}

// refillLocked applies lazy refill: tokens = min(capacity, tokens +
// elapsed_s * rate). Must be called with b.mu held.
func (b *Bucket) refillLocked() {
	now := time.Now().UnixNano()
	elapsedSec := float64(now-b.lastRefillNs) / 1e9
	if elapsedSec <= 0 {
		return
	}
	b.tokens = minF(b.Capacity, b.tokens+elapsedSec*b.RefillPerSec)
	b.lastRefillNs = now
}

// refillWaitLocked returns the delay until at least one token is available.
// Must be called with b.mu held.
func (b *Bucket) refillWaitLocked() time.Duration {
	if b.tokens >= 1 || b.RefillPerSec <= 0 {
		return 0
	}
	secs := (1 - b.tokens) / b.RefillPerSec
	if secs < 0 {
		secs = 0
	}
	return time.Duration(secs * float64(time.Second))
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
