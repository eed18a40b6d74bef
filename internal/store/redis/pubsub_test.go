package redis_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/deepsearch/internal/domain"
	redisstore "github.com/gosuda/deepsearch/internal/store/redis"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestChatChannel(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "chat:user-1", redisstore.ChatChannel("user-1"))
	})

	t.Run("prefix", func(t *testing.T) {
		t.Parallel()

		got := redisstore.ChatChannel("abc")
		assert.True(t, strings.HasPrefix(got, "chat:"), "expected prefix 'chat:', got %q", got)
	})

	t.Run("different users produce different channels", func(t *testing.T) {
		t.Parallel()

		assert.NotEqual(t, redisstore.ChatChannel("a"), redisstore.ChatChannel("b"))
	})

	t.Run("distinct from quota key", func(t *testing.T) {
		t.Parallel()

		assert.NotEqual(t, redisstore.ChatChannel("a"), redisstore.QuotaKey("a"))
	})
}

func TestPubSub_PublishSubscribe(t *testing.T) {
	t.Parallel()

	_, client := newTestClient(t)
	ps := redisstore.NewFromClient(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	channel := redisstore.ChatChannel(domain.UserID("u1"))
	msgs, cleanup, err := ps.Subscribe(ctx, channel)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, ps.Publish(ctx, channel, []byte(`{"type":"text-delta"}`)))

	select {
	case got := <-msgs:
		assert.JSONEq(t, `{"type":"text-delta"}`, string(got))
	case <-ctx.Done():
		t.Fatal("timed out waiting for published message")
	}
}

func TestPubSub_SubscribeClosesOnCancel(t *testing.T) {
	t.Parallel()

	_, client := newTestClient(t)
	ps := redisstore.NewFromClient(client)

	ctx, cancel := context.WithCancel(context.Background())
	msgs, cleanup, err := ps.Subscribe(ctx, "chat:u2")
	require.NoError(t, err)
	defer cleanup()

	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok, "channel should be closed after cancel")
	case <-time.After(5 * time.Second):
		t.Fatal("subscription channel was not closed")
	}
}
