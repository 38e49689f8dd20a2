package password

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool runs Hasher calls on at most size goroutines at a time. Callers
// beyond the limit wait, and give up when their context is done.
type Pool struct {
	hasher Hasher
	sem    *semaphore.Weighted
	size   int64
}

// NewPool wraps h. A size <= 0 means GOMAXPROCS.
func NewPool(h Hasher, size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{hasher: h, sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return int(p.size) }

// Hash hashes plain once a slot is free.
func (p *Pool) Hash(ctx context.Context, plain string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)
	return p.hasher.Hash(plain)
}

// Verify checks plain against encodedHash once a slot is free.
func (p *Pool) Verify(ctx context.Context, plain, encodedHash string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.sem.Release(1)
	return p.hasher.Verify(plain, encodedHash)
}

// NeedsUpgrade does not take a slot; it only parses the hash.
func (p *Pool) NeedsUpgrade(encodedHash string) (bool, error) {
	return p.hasher.NeedsUpgrade(encodedHash)
}
