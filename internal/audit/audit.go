package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Event records one session lifecycle change observed by the client.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	Method    string            `json:"method,omitempty"`
	Path      string            `json:"path,omitempty"`
	Status    int               `json:"status,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives dispatched events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink buffers events for a consumer. When the consumer falls behind
// and the buffer is full, further events are discarded and counted.
type ChannelSink struct {
	events  chan Event
	dropped atomic.Uint64
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(_ context.Context, event Event) {
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}

// Events is the receive side of the buffer.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// Dropped counts events discarded because the buffer was full.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

// JSONWriterSink encodes each event as one JSON line. The first write error
// is kept and reported by Err; later events are still attempted.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(event); err != nil && s.err == nil {
		s.err = err
	}
}

// Err returns the first error seen while writing.
func (s *JSONWriterSink) Err() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// LogSink writes events to a zerolog logger: successes at info, failures at warn.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	e := s.logger.Info()
	if !event.Success {
		e = s.logger.Warn()
	}
	e = e.Time("at", event.Timestamp).
		Str("event", event.Type).
		Str("user_id", event.UserID).
		Str("username", event.Username)
	if event.Path != "" {
		e = e.Str("method", event.Method).Str("path", event.Path).Int("status", event.Status)
	}
	if event.Error != "" {
		e = e.Str("error", event.Error)
	}
	for k, v := range event.Metadata {
		e = e.Str(k, v)
	}
	e.Msg("session audit")
}
