package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/message"
	"github.com/nadzzz/voicedesk/internal/tts"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newGuard(cooldown time.Duration) (*Guard, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	return NewGuard(NewMemoryStore(0), cooldown, WithClock(clock.Now)), clock
}

func TestGuard_Cooldown(t *testing.T) {
	ctx := context.Background()
	g, clock := newGuard(15 * time.Second)

	lease, prev, err := g.Begin(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, prev)
	require.NoError(t, lease.Complete(ctx, &message.Result{MessageID: "m1", Intent: "Card Block", ResponseText: "done"}))

	clock.Advance(5 * time.Second)
	lease, cached, err := g.Begin(ctx, "s1")
	assert.Nil(t, lease)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, fault.ErrRateLimited)
	assert.True(t, IsRateLimited(err))
	require.NotNil(t, cached)
	assert.Equal(t, "m1", cached.Result.MessageID)
	assert.Equal(t, "done", cached.Result.ResponseText)

	// Other sessions are unaffected.
	other, _, err := g.Begin(ctx, "s2")
	require.NoError(t, err)
	other.Abort()

	clock.Advance(10 * time.Second)
	lease, cached, err = g.Begin(ctx, "s1")
	require.NoError(t, err, "cooldown elapsed")
	assert.NotNil(t, cached)
	lease.Abort()
}

func TestGuard_ResetReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(time.Hour)

	lease, _, err := g.Begin(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, lease.Complete(ctx, &message.Result{MessageID: "m1"}))

	_, _, err = g.Begin(ctx, "s1")
	require.ErrorIs(t, err, ErrRateLimited)

	require.NoError(t, g.Reset(ctx, "s1"))
	lease, cached, err := g.Begin(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, cached)
	lease.Abort()
}

func TestGuard_AbortDoesNotStartCooldown(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(time.Hour)

	lease, _, err := g.Begin(ctx, "s1")
	require.NoError(t, err)
	lease.Abort()
	lease.Abort()

	lease, _, err = g.Begin(ctx, "s1")
	require.NoError(t, err)
	lease.Abort()
}

func TestGuard_ZeroCooldownNeverLimits(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(0)
	for i := 0; i < 3; i++ {
		lease, _, err := g.Begin(ctx, "s1")
		require.NoError(t, err)
		require.NoError(t, lease.Complete(ctx, &message.Result{}))
	}
}

func TestGuard_SerialisesOneSession(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(0)

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, _, err := g.Begin(ctx, "shared")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			lease.Abort()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight)

	g.mu.Lock()
	assert.Empty(t, g.locks)
	g.mu.Unlock()
}

func TestGuard_BeginHonoursContext(t *testing.T) {
	g, _ := newGuard(0)
	lease, _, err := g.Begin(context.Background(), "s1")
	require.NoError(t, err)
	defer lease.Abort()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = g.Begin(ctx, "s1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLease_CompleteInlinesAudio(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(time.Minute)

	art, err := tts.WriteArtifact(t.TempDir(), []byte("RIFFdata"), "audio/wav")
	require.NoError(t, err)
	res := &message.Result{MessageID: "m1", Audio: art}

	lease, _, err := g.Begin(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, lease.Complete(ctx, res))
	assert.Same(t, art, res.Audio, "caller keeps its artifact")

	_, cached, err := g.Begin(ctx, "s1")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Nil(t, cached.Result.Audio)
	assert.Equal(t, "audio/wav", cached.Result.ResponseContentType)
	data, err := cached.Result.ResponseAudioBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFdata"), data)
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "k", &Entry{Result: &message.Result{MessageID: "m"}, CompletedAt: now}))
	e, err := s.Load(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, e)

	e.Result.MessageID = "mutated"
	again, _ := s.Load(ctx, "k")
	assert.Equal(t, "m", again.Result.MessageID)

	now = now.Add(2 * time.Minute)
	e, err = s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_SweepsUnloadedKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		require.NoError(t, s.Save(ctx, fmt.Sprintf("oneshot-%d", i), &Entry{Result: &message.Result{}, CompletedAt: now}))
	}
	assert.Equal(t, 1000, s.Len())

	now = now.Add(24 * time.Hour)
	require.NoError(t, s.Save(ctx, "fresh", &Entry{Result: &message.Result{}, CompletedAt: now}))
	assert.Equal(t, 1, s.Len())

	e, err := s.Load(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestMemoryStore_NoTTLKeepsEntries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "a", &Entry{Result: &message.Result{}, CompletedAt: now}))
	now = now.Add(24 * time.Hour)
	require.NoError(t, s.Save(ctx, "b", &Entry{Result: &message.Result{}, CompletedAt: now}))
	assert.Equal(t, 2, s.Len())
}
