// Package mock provides test doubles for model interfaces using function fields.
package mock

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/gosuda/deepsearch/internal/model"
)

var errUnexpectedTurn = errors.New("mock: unexpected model turn")

// Interface compliance checks.
var (
	_ model.Backend = (*Backend)(nil)
	_ model.Stream  = (*Stream)(nil)
)

// Backend is a test double for model.Backend.
// Set StreamFn before calling Stream.
type Backend struct {
	StreamFn func(ctx context.Context, req model.Request) (model.Stream, error)
}

// Stream delegates to StreamFn.
func (b *Backend) Stream(ctx context.Context, req model.Request) (model.Stream, error) {
	return b.StreamFn(ctx, req)
}

// Stream is a test double for model.Stream. NextFn panics when nil to catch
// missing setup. CloseFn is nil-safe.
type Stream struct {
	NextFn  func() (model.Event, error)
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (model.Event, error) {
	return s.NextFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// Events returns a Stream that yields events in order, then err, or io.EOF
// when err is nil.
func Events(err error, events ...model.Event) *Stream {
	var mu sync.Mutex
	i := 0
	return &Stream{
		NextFn: func() (model.Event, error) {
			mu.Lock()
			defer mu.Unlock()

			if i < len(events) {
				ev := events[i]
				i++
				return ev, nil
			}
			if err != nil {
				return nil, err
			}
			return nil, io.EOF
		},
	}
}

// Turns returns a Backend that serves one scripted stream per call, in order.
// Calls beyond the script return an error.
func Turns(streams ...model.Stream) *Backend {
	var mu sync.Mutex
	i := 0
	return &Backend{
		StreamFn: func(context.Context, model.Request) (model.Stream, error) {
			mu.Lock()
			defer mu.Unlock()

			if i >= len(streams) {
				return nil, errUnexpectedTurn
			}
			s := streams[i]
			i++
			return s, nil
		},
	}
}
