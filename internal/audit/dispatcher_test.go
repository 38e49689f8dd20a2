package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	gate   chan struct{}
}

func (s *recordingSink) Emit(_ context.Context, e Event) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Name)
	}
	return out
}

func TestDispatcherDeliversInOrderAndDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &recordingSink{}
	d := NewDispatcher(Config{BufferSize: 16}, sink, nil)
	for _, name := range []string{"a", "b", "c"} {
		d.Emit(context.Background(), NewEvent(name, time.Now()))
	}
	d.Close()

	assert.Equal(t, []string{"a", "b", "c"}, sink.names())
	assert.Zero(t, d.Dropped())

	d.Emit(context.Background(), NewEvent("late", time.Now()))
	d.Close()
	assert.Len(t, sink.names(), 3)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := make(chan struct{})
	sink := &recordingSink{gate: gate}
	d := NewDispatcher(Config{BufferSize: 1}, sink, nil)

	start := time.Now()
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), NewEvent("flood", time.Now()))
	}
	assert.Less(t, time.Since(start), time.Second, "emit must not block")
	assert.Positive(t, d.Dropped())

	close(gate)
	d.Close()
}

func TestDispatcherCountsEmitAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &recordingSink{}
	d := NewDispatcher(Config{BufferSize: 4}, sink, nil)
	d.Close()

	d.Emit(context.Background(), NewEvent("late", time.Now()))
	assert.Equal(t, uint64(1), d.Dropped())
	assert.Empty(t, sink.names())
}

func TestDispatcherEmitRacingCloseAccountsForEveryEvent(t *testing.T) {
	defer goleak.VerifyNone(t)

	const emitters, perEmitter = 8, 50
	sink := &recordingSink{}
	d := NewDispatcher(Config{BufferSize: 16}, sink, nil)

	var wg sync.WaitGroup
	for i := 0; i < emitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perEmitter; j++ {
				d.Emit(context.Background(), NewEvent("race", time.Now()))
			}
		}()
	}
	d.Close()
	wg.Wait()

	delivered := uint64(len(sink.names()))
	assert.Equal(t, uint64(emitters*perEmitter), delivered+d.Dropped())
}

func TestDispatcherLogsAndSwallowsSinkErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := &recordingSink{err: errors.New("bus down")}
	d := NewDispatcher(Config{BufferSize: 4}, sink, logger)

	d.Emit(context.Background(), NewEvent("user.login", time.Now()))
	d.Close()

	assert.Equal(t, uint64(1), d.Failed())
	assert.Contains(t, buf.String(), "security event publish failed")
	assert.Contains(t, buf.String(), "bus down")
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Emit(context.Background(), NewEvent("x", time.Now()))
	d.Close()
	assert.Zero(t, d.Dropped())
}

func TestEventPayloadAndJSONSink(t *testing.T) {
	e := NewEvent("user.logout", time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600)))
	e.UserID = "u1"
	e.SessionID = "s1"
	e.Reason = "expired"
	e.Data = map[string]any{"count": 3}

	p := e.Payload()
	assert.Equal(t, "u1", p["user_id"])
	assert.Equal(t, "expired", p["reason"])
	assert.Equal(t, 3, p["count"])
	assert.Equal(t, "2026-01-02T02:04:05Z", p["timestamp"])
	assert.Len(t, e.ID, 26)

	var buf bytes.Buffer
	require.NoError(t, NewJSONWriterSink(&buf).Emit(context.Background(), e))
	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Equal(t, "user.logout", decoded["name"])
}
