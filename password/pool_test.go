package password

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowHasher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (s *slowHasher) enter() {
	n := s.inFlight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	s.inFlight.Add(-1)
}

func (s *slowHasher) Hash(plain string) (string, error) {
	s.enter()
	return "h:" + plain, nil
}

func (s *slowHasher) Verify(plain, encodedHash string) (bool, error) {
	s.enter()
	return encodedHash == "h:"+plain, nil
}

func (s *slowHasher) NeedsUpgrade(string) (bool, error) { return false, nil }

func TestPoolBoundsConcurrency(t *testing.T) {
	h := &slowHasher{delay: 10 * time.Millisecond}
	p := NewPool(h, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := p.Verify(context.Background(), "pw", "h:pw")
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, h.peak.Load(), int32(2))
	assert.Equal(t, 2, p.Size())
}

func TestPoolHonorsCancellation(t *testing.T) {
	h := &slowHasher{delay: 200 * time.Millisecond}
	p := NewPool(h, 1)

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = p.Hash(context.Background(), "hold")
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Hash(ctx, "waiting")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolDefaultSize(t *testing.T) {
	p := NewPool(&slowHasher{}, 0)
	assert.Positive(t, p.Size())
}
