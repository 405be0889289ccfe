package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/message"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), config.RedisConfig{Addr: mr.Addr(), Prefix: "vd:"}, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	e, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, e)

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	in := &Entry{
		Result:      &message.Result{MessageID: "m1", Intent: "UPI Issue", Language: "hi", ResponseAudio: "UklGRg==", ResponseContentType: "audio/wav"},
		CompletedAt: at,
	}
	require.NoError(t, s.Save(ctx, "s1", in))
	assert.True(t, mr.Exists("vd:s1"))
	assert.Equal(t, time.Hour, mr.TTL("vd:s1"))

	out, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "UPI Issue", out.Result.Intent)
	assert.Equal(t, "UklGRg==", out.Result.ResponseAudio)
	assert.True(t, at.Equal(out.CompletedAt))

	require.NoError(t, s.Delete(ctx, "s1"))
	assert.False(t, mr.Exists("vd:s1"))
	require.NoError(t, s.Ping(ctx))
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	require.NoError(t, s.Save(ctx, "s1", &Entry{Result: &message.Result{}, CompletedAt: time.Now()}))
	mr.FastForward(2 * time.Hour)

	e, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestRedisStore_GuardSharesCooldown(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	// Two replicas share one Redis.
	a := NewGuard(s, time.Minute)
	b := NewGuard(s, time.Minute)

	lease, _, err := a.Begin(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, lease.Complete(ctx, &message.Result{MessageID: "m1"}))

	_, cached, err := b.Begin(ctx, "s1")
	assert.ErrorIs(t, err, ErrRateLimited)
	require.NotNil(t, cached)
	assert.Equal(t, "m1", cached.Result.MessageID)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	s, mr := newRedisStore(t)
	require.NoError(t, mr.Set("vd:bad", "{not json"))
	_, err := s.Load(context.Background(), "bad")
	assert.Error(t, err)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisStore(ctx, config.RedisConfig{Addr: "127.0.0.1:1"}, 0)
	assert.Error(t, err)
}
