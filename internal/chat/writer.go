package chat

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrStreamClosed is returned for pushes after StreamEnd or Close.
	ErrStreamClosed = errors.New("chat: stream closed")
	// ErrStreamingUnsupported means the ResponseWriter cannot flush.
	ErrStreamingUnsupported = errors.New("chat: streaming unsupported")
)

// encodeFailedPayload replaces an event that could not be encoded.
var encodeFailedPayload = []byte(`{"message":"failed to encode event"}`)

// Sink receives stream events in order.
type Sink interface {
	Push(ev Event) error
}

// Writer writes events as Server-Sent Events, flushing after each one.
// Frames are emitted in push order and never coalesced. After StreamEnd is
// written every further push is dropped with ErrStreamClosed.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	log     zerolog.Logger
	ended   bool
	err     error

	closeOnce sync.Once
	closeErr  error
}

var _ Sink = (*Writer)(nil)

// NewWriter commits an SSE response on w. It fails before writing anything
// when w cannot flush, so the caller can still send a plain error.
func NewWriter(w http.ResponseWriter, logger zerolog.Logger) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher, log: logger}, nil
}

// Push writes one event frame. An event that fails to encode is replaced by
// an error frame in the same position and the stream continues.
func (s *Writer) Push(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pushLocked(ev)
}

func (s *Writer) pushLocked(ev Event) error {
	if s.ended {
		return ErrStreamClosed
	}
	if s.err != nil {
		return s.err
	}

	name, data, err := encodeEvent(ev)
	if err != nil {
		s.log.Error().Err(err).Msg("chat.Writer.Push: encode event")
		name, data = EventError, encodeFailedPayload
	}

	if err := s.writeFrame(name, data); err != nil {
		s.err = fmt.Errorf("chat.Writer.Push: %w", err)
		return s.err
	}

	if _, ok := ev.(StreamEnd); ok {
		s.ended = true
	}
	return nil
}

func (s *Writer) writeFrame(name string, data []byte) error {
	var buf bytes.Buffer
	buf.Grow(len(name) + len(data) + 16)
	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")

	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close terminates the stream exactly once, writing StreamEnd if the run
// never pushed one. Later calls return the first result.
func (s *Writer) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if !s.ended && s.err == nil {
			s.closeErr = s.pushLocked(StreamEnd{})
		}
		s.ended = true
	})
	return s.closeErr
}
