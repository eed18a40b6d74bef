package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type tee struct {
	primary   Sink
	observers []Sink
	log       zerolog.Logger
}

// Tee forwards every event to primary and then to each observer. Only the
// primary's error is returned; observer failures are logged and never affect
// the primary stream. Observers must not block.
func Tee(logger zerolog.Logger, primary Sink, observers ...Sink) Sink {
	if len(observers) == 0 {
		return primary
	}
	return &tee{primary: primary, observers: observers, log: logger}
}

func (t *tee) Push(ev Event) error {
	err := t.primary.Push(ev)
	for _, o := range t.observers {
		if oerr := o.Push(ev); oerr != nil {
			t.log.Debug().Err(oerr).Msg("chat.Tee: observer push failed")
		}
	}
	return err
}

// Publisher sends raw payloads to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

const (
	// DefaultPublishBuffer is how many mirror payloads may wait for delivery.
	DefaultPublishBuffer = 256
	// DefaultPublishTimeout bounds a single publish.
	DefaultPublishTimeout = 2 * time.Second
)

// ErrMirrorBacklog is returned when the mirror queue is full and the event
// was dropped.
var ErrMirrorBacklog = errors.New("chat: mirror backlog full")

// PublishSink mirrors events as JSON envelopes onto a pub/sub channel. Push
// only enqueues; a background goroutine publishes in order. When the queue is
// full the event is dropped, so a slow broker never stalls the caller.
type PublishSink struct {
	ctx     context.Context
	pub     Publisher
	channel string
	timeout time.Duration
	log     *zerolog.Logger

	mu     sync.Mutex
	queue  chan []byte
	closed bool
	done   chan struct{}
}

var _ Sink = (*PublishSink)(nil)

// PublishOption configures a PublishSink.
type PublishOption func(*PublishSink)

// WithPublishBuffer sets the queue capacity.
func WithPublishBuffer(n int) PublishOption {
	return func(p *PublishSink) {
		if n > 0 {
			p.queue = make(chan []byte, n)
		}
	}
}

// WithPublishTimeout bounds each publish call.
func WithPublishTimeout(d time.Duration) PublishOption {
	return func(p *PublishSink) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPublishSink starts publishing to channel. ctx is the parent of every
// publish; the sink stops after StreamEnd is pushed or Close is called.
func NewPublishSink(ctx context.Context, pub Publisher, channel string, opts ...PublishOption) *PublishSink {
	p := &PublishSink{
		ctx:     ctx,
		pub:     pub,
		channel: channel,
		timeout: DefaultPublishTimeout,
		log:     zerolog.Ctx(ctx),
		queue:   make(chan []byte, DefaultPublishBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.drain()
	return p
}

func (p *PublishSink) Push(ev Event) error {
	name, data, err := encodeEvent(ev)
	if err != nil {
		name, data = EventError, encodeFailedPayload
	}

	payload, err := marshalEnvelope(name, data)
	if err != nil {
		return fmt.Errorf("chat.PublishSink.Push: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrStreamClosed
	}

	select {
	case p.queue <- payload:
	default:
		return ErrMirrorBacklog
	}

	if _, ok := ev.(StreamEnd); ok {
		p.closeLocked()
	}
	return nil
}

// Close stops accepting events. Queued payloads are still published. It does
// not wait; use Done for that.
func (p *PublishSink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLocked()
	return nil
}

// Done is closed once every queued payload has been handled.
func (p *PublishSink) Done() <-chan struct{} {
	return p.done
}

func (p *PublishSink) closeLocked() {
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
}

func (p *PublishSink) drain() {
	defer close(p.done)

	for payload := range p.queue {
		ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		err := p.pub.Publish(ctx, p.channel, payload)
		cancel()
		if err != nil {
			p.log.Debug().Err(err).Str("channel", p.channel).Msg("chat.PublishSink: publish failed")
		}
	}
}

func marshalEnvelope(name string, data []byte) ([]byte, error) {
	return json.Marshal(Envelope{Type: name, Data: data})
}
