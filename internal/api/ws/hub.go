// Package ws mirrors live chat streams to WebSocket clients.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/gosuda/deepsearch/internal/server/middleware"
	redisstore "github.com/gosuda/deepsearch/internal/store/redis"
)

// PubSub is the channel transport behind the hub.
// *redisstore.PubSub satisfies this interface.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Hub manages WebSocket connections backed by Redis pub/sub.
type Hub struct {
	pubsub PubSub
	opts   *websocket.AcceptOptions
}

// NewHub creates a new WebSocket hub. origins are the allowed cross-origin
// clients, either as host patterns or as full origins like the CORS list; an
// empty list accepts same-origin clients only.
func NewHub(pubsub PubSub, origins ...string) *Hub {
	h := &Hub{pubsub: pubsub}

	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		patterns = append(patterns, o)
	}
	if len(patterns) > 0 {
		h.opts = &websocket.AcceptOptions{OriginPatterns: patterns}
	}
	return h
}

// ServeChat streams the caller's own chat events. Subscribes to Redis
// channel "chat:<userID>" and relays each envelope as a text frame.
func (h *Hub) ServeChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	logger := zerolog.Ctx(r.Context())

	conn, err := websocket.Accept(w, r, h.opts)
	if err != nil {
		logger.Error().Err(err).Msg("ws.Hub.ServeChat: accept")
		return
	}
	defer conn.CloseNow()

	// The mirror is read-only; CloseRead cancels ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())
	channel := redisstore.ChatChannel(userID)

	messages, cleanup, err := h.pubsub.Subscribe(ctx, channel)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("ws.Hub.ServeChat: subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				logger.Debug().Err(writeErr).Msg("ws.Hub.ServeChat: write")
				return
			}
		}
	}
}

// Publish sends an event payload to a channel. The chat handler uses it as
// the chat.Publisher for mirrored streams.
func (h *Hub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := h.pubsub.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("ws.Hub.Publish: %w", err)
	}
	return nil
}
