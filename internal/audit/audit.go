package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is one security event.
type Event struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent stamps name with a fresh ULID and the given time in UTC.
func NewEvent(name string, at time.Time) Event {
	return Event{
		ID:        ulid.Make().String(),
		Name:      name,
		Timestamp: at.UTC(),
	}
}

// Payload flattens e into the map handed to external buses.
func (e Event) Payload() map[string]any {
	p := make(map[string]any, 8+len(e.Data))
	for k, v := range e.Data {
		p[k] = v
	}
	p["event_id"] = e.ID
	p["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	if e.UserID != "" {
		p["user_id"] = e.UserID
	}
	if e.SessionID != "" {
		p["session_id"] = e.SessionID
	}
	if e.IP != "" {
		p["ip"] = e.IP
	}
	if e.UserAgent != "" {
		p["user_agent"] = e.UserAgent
	}
	if e.Reason != "" {
		p["reason"] = e.Reason
	}
	return p
}

// Sink receives dispatched events. An error is logged by the Dispatcher and
// otherwise ignored.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) error { return nil }

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.writer.Write(data)
	return err
}
