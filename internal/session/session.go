// Package session holds the per-session cooldown guard and its result cache.
//
// A session is Idle until a pipeline run completes successfully; it is then
// Cooling-down for the configured window, during which new requests get the
// cached result back with ErrRateLimited instead of reaching paid services.
// Reset returns the session to Idle immediately.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/message"
)

// ErrRateLimited is returned by Begin while a session is cooling down.
// It is the fault sentinel, so either name matches under errors.Is.
var ErrRateLimited = fault.ErrRateLimited

// DefaultCooldown is the minimum gap between two paid pipeline runs.
const DefaultCooldown = 15 * time.Second

// Entry is the single cached result of a session.
type Entry struct {
	// Result has its audio inlined as base64; it owns no artifact.
	Result      *message.Result `json:"result"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Store persists one Entry per session key.
type Store interface {
	// Load returns nil, nil when the key has no entry.
	Load(ctx context.Context, key string) (*Entry, error)
	Save(ctx context.Context, key string, e *Entry) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Guard serialises requests per session and enforces the cooldown.
type Guard struct {
	store    Store
	cooldown time.Duration
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a Guard. A cooldown of zero disables rate limiting.
func NewGuard(store Store, cooldown time.Duration, opts ...Option) *Guard {
	g := &Guard{
		store:    store,
		cooldown: cooldown,
		now:      time.Now,
		locks:    make(map[string]*keyLock),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Lease is held by the one in-flight request of a session.
type Lease struct {
	g    *Guard
	key  string
	once sync.Once
}

// Begin takes the session lock. While cooling down it releases the lock at
// once and returns the cached entry with ErrRateLimited.
func (g *Guard) Begin(ctx context.Context, key string) (*Lease, *Entry, error) {
	if err := g.lock(ctx, key); err != nil {
		return nil, nil, err
	}

	entry, err := g.store.Load(ctx, key)
	if err != nil {
		g.unlock(key)
		return nil, nil, fmt.Errorf("loading session %q: %w", key, err)
	}

	if entry != nil && g.cooldown > 0 {
		if elapsed := g.now().Sub(entry.CompletedAt); elapsed < g.cooldown {
			g.unlock(key)
			remaining := (g.cooldown - elapsed).Round(time.Millisecond)
			return nil, entry, fault.Errorf(fault.KindRateLimited, "session.begin", "session %q cooling down for %s", key, remaining)
		}
	}
	return &Lease{g: g, key: key}, entry, nil
}

// Complete caches r, starts the cooldown and releases the lock.
func (l *Lease) Complete(ctx context.Context, r *message.Result) error {
	var err error
	l.once.Do(func() {
		defer l.g.unlock(l.key)

		stored := r.Clone()
		if r.Audio != nil && stored.ResponseAudio == "" {
			data, rerr := r.Audio.Bytes()
			if rerr != nil {
				err = fmt.Errorf("reading audio for cache: %w", rerr)
				return
			}
			stored.SetResponseAudioBytes(data)
			stored.ResponseContentType = r.Audio.ContentType
		}
		err = l.g.store.Save(ctx, l.key, &Entry{Result: stored, CompletedAt: l.g.now()})
	})
	return err
}

// Abort releases the lock without touching the cache. It is a no-op after Complete.
func (l *Lease) Abort() {
	l.once.Do(func() { l.g.unlock(l.key) })
}

// Reset clears the cached result and the cooldown of key.
func (g *Guard) Reset(ctx context.Context, key string) error {
	if err := g.lock(ctx, key); err != nil {
		return err
	}
	defer g.unlock(key)

	if err := g.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("resetting session %q: %w", key, err)
	}
	slog.Debug("session reset", "session", key)
	return nil
}

// Close closes the underlying store.
func (g *Guard) Close() error { return g.store.Close() }

// --- Internal helpers ---

func (g *Guard) lock(ctx context.Context, key string) error {
	g.mu.Lock()
	kl, ok := g.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		g.locks[key] = kl
	}
	kl.refs++
	g.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		g.release(key, kl)
		return ctx.Err()
	}
}

func (g *Guard) unlock(key string) {
	g.mu.Lock()
	kl := g.locks[key]
	g.mu.Unlock()
	if kl == nil {
		return
	}
	<-kl.ch
	g.release(key, kl)
}

func (g *Guard) release(key string, kl *keyLock) {
	g.mu.Lock()
	defer g.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(g.locks, key)
	}
}

// IsRateLimited reports whether err came from a cooling-down session.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
