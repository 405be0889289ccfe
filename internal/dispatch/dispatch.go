// Package dispatch implements the query pipeline.
//
// The dispatcher receives messages from transports and runs them through
// transcribe → (language ∥ intent) → reply → synthesize under the session
// cooldown guard. A failed stage ends the request with its typed error and
// no partial result; only a successful run starts the session's cooldown.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/voicedesk/internal/audio"
	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/intent"
	"github.com/nadzzz/voicedesk/internal/langid"
	"github.com/nadzzz/voicedesk/internal/message"
	"github.com/nadzzz/voicedesk/internal/session"
	"github.com/nadzzz/voicedesk/internal/stt"
	"github.com/nadzzz/voicedesk/internal/telemetry"
	"github.com/nadzzz/voicedesk/internal/tts"
)

// DefaultSession keys requests that name no session.
const DefaultSession = "default"

// Replier generates the reply text.
type Replier interface {
	Generate(ctx context.Context, u message.Utterance, label intent.Label, language string) (string, error)
}

// Deps are the pipeline stages. Transcriber and Synthesizer may be nil,
// which disables audio input and audio output respectively.
type Deps struct {
	Transcriber stt.Transcriber
	Resolver    *langid.Resolver
	Classifier  intent.Classifier
	Replier     Replier
	Synthesizer tts.Synthesizer
	Guard       *session.Guard
}

// Options tune the pipeline.
type Options struct {
	DefaultMode message.ResponseMode
	Timeout     time.Duration // per request; zero means none
	AudioDir    string        // where reply artifacts go; empty means os.TempDir
	Prompt      string        // transcription hint
}

// Dispatcher is the pipeline engine.
type Dispatcher struct {
	deps Deps
	opts Options
}

// New creates a Dispatcher.
func New(deps Deps, opts Options) *Dispatcher {
	if opts.DefaultMode == "" {
		opts.DefaultMode = message.ResponseModeText
		if deps.Synthesizer != nil {
			opts.DefaultMode = message.ResponseModeTextAudio
		}
	}
	return &Dispatcher{deps: deps, opts: opts}
}

// Handle runs one message through the pipeline. The caller owns the
// returned Result and must call Release after delivering it.
func (d *Dispatcher) Handle(ctx context.Context, msg *message.Message) (*message.Result, error) {
	start := time.Now()
	if msg.Session == "" {
		msg.Session = DefaultSession
	}
	logger := slog.With("message_id", msg.ID, "session", msg.Session, "source", msg.Source)

	mode, err := d.validate(msg)
	if err != nil {
		telemetry.QueriesTotal.WithLabelValues("", string(fault.KindInvalidInput)).Inc()
		logger.Info("query rejected", "error", err)
		return nil, err
	}

	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	lease, cached, err := d.deps.Guard.Begin(ctx, msg.Session)
	if session.IsRateLimited(err) && cached != nil && cached.Result != nil {
		telemetry.RateLimitedTotal.Inc()
		logger.Info("session cooling down, serving cached result", "cached_message_id", cached.Result.MessageID)
		return d.replay(cached)
	}
	if err != nil {
		return nil, fmt.Errorf("acquiring session: %w", err)
	}
	defer lease.Abort()

	logger.Info("dispatch started", "response_mode", mode, "audio", msg.HasAudio())

	res, err := d.run(ctx, logger, msg, mode)
	if err != nil {
		telemetry.QueriesTotal.WithLabelValues("", string(kindOf(err))).Inc()
		logger.Error("dispatch failed", "kind", kindOf(err), "error", err)
		return nil, err
	}

	if err := lease.Complete(ctx, res); err != nil {
		logger.Warn("caching result failed; cooldown not applied", "error", err)
	}

	telemetry.QueriesTotal.WithLabelValues(res.Intent, "ok").Inc()
	telemetry.QueryLatency.Observe(time.Since(start).Seconds())
	logger.Info("dispatch complete", "intent", res.Intent, "language", res.Language, "duration", time.Since(start))
	return res, nil
}

// Reset clears the cached result and cooldown of a session.
func (d *Dispatcher) Reset(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		sessionKey = DefaultSession
	}
	return d.deps.Guard.Reset(ctx, sessionKey)
}

// --- Internal helpers ---

func (d *Dispatcher) validate(msg *message.Message) (message.ResponseMode, error) {
	const op = "dispatch.validate"

	if !msg.HasAudio() && strings.TrimSpace(msg.Text) == "" {
		return "", fault.E(fault.KindInvalidInput, op, message.ErrNoInput)
	}
	if msg.HasAudio() && d.deps.Transcriber == nil {
		return "", fault.Errorf(fault.KindInvalidInput, op, "audio input is disabled")
	}

	mode := msg.ResponseMode
	switch mode {
	case "":
		mode = d.opts.DefaultMode
	case message.ResponseModeText, message.ResponseModeAudio, message.ResponseModeTextAudio:
	default:
		return "", fault.Errorf(fault.KindInvalidInput, op, "unknown response mode %q", mode)
	}
	if mode.WantsAudio() && d.deps.Synthesizer == nil {
		return "", fault.Errorf(fault.KindInvalidInput, op, "audio responses are disabled")
	}
	return mode, nil
}

func (d *Dispatcher) run(ctx context.Context, logger *slog.Logger, msg *message.Message, mode message.ResponseMode) (*message.Result, error) {
	u, err := d.utterance(ctx, logger, msg)
	if err != nil {
		return nil, err
	}

	// Language and intent both only need the text.
	var (
		lang       langid.Resolution
		classified *intent.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lang = d.deps.Resolver.Resolve(u.Text(), u.Language())
		return nil
	})
	g.Go(func() error {
		defer observe("classify", time.Now())
		r, err := d.deps.Classifier.Classify(gctx, u)
		if err != nil {
			return err
		}
		classified = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Info("query understood", "intent", classified.Label, "classifier", classified.Source, "language", lang.Tag, "language_source", lang.Source)

	replyStart := time.Now()
	text, err := d.deps.Replier.Generate(ctx, u, classified.Label, lang.Tag)
	observe("reply", replyStart)
	if err != nil {
		return nil, err
	}

	res := &message.Result{
		MessageID:      msg.ID,
		Session:        msg.Session,
		Transcript:     u.Text(),
		Language:       lang.Tag,
		LanguageSource: string(lang.Source),
		Intent:         classified.Label.String(),
		Rationale:      classified.Rationale,
	}
	if mode.WantsText() {
		res.ResponseText = text
	}

	if mode.WantsAudio() {
		synthStart := time.Now()
		art, err := tts.Render(ctx, d.deps.Synthesizer, d.opts.AudioDir, text, tts.SynthesizeOpts{Language: lang.Tag})
		observe("synthesize", synthStart)
		if err != nil {
			return nil, err
		}
		res.Audio = art
		res.ResponseContentType = art.ContentType
		res.Voice = art.Voice
		if art.Selection == tts.VoiceFallback {
			res.VoiceFallback = true
			telemetry.VoiceFallbackTotal.WithLabelValues(lang.Tag).Inc()
			logger.Warn("no voice for language, used default", "language", lang.Tag, "voice", art.Voice)
		}
	}

	res.CompletedAt = time.Now()
	return res, nil
}

func (d *Dispatcher) utterance(ctx context.Context, logger *slog.Logger, msg *message.Message) (message.Utterance, error) {
	if !msg.HasAudio() {
		return message.NewUtterance(strings.TrimSpace(msg.Text), "", ""), nil
	}

	defer observe("transcribe", time.Now())
	clip, err := audio.Normalize(msg.Audio, msg.ContentType)
	if err != nil {
		return message.Utterance{}, err
	}
	logger.Debug("transcribing audio", "content_type", clip.ContentType, "bytes", len(clip.Data), "converted", clip.Converted, "duration", clip.Duration)

	tr, err := d.deps.Transcriber.Transcribe(ctx, clip.Data, clip.ContentType, stt.TranscribeOpts{Prompt: d.opts.Prompt})
	if err != nil {
		return message.Utterance{}, err
	}
	logger.Info("transcription complete", "backend", d.deps.Transcriber.Name(), "text_length", len(tr.Text), "language", tr.Language)
	return message.NewUtterance(tr.Text, tr.Language, msg.ID), nil
}

// replay turns a cached entry into a fresh result with its own artifact.
func (d *Dispatcher) replay(cached *session.Entry) (*message.Result, error) {
	res := cached.Result.Clone()
	res.RateLimited = true
	res.Cached = true

	data, err := res.ResponseAudioBytes()
	if err != nil {
		return nil, fmt.Errorf("decoding cached audio: %w", err)
	}
	if len(data) > 0 {
		art, err := tts.WriteArtifact(d.opts.AudioDir, data, res.ResponseContentType)
		if err != nil {
			return nil, fmt.Errorf("restoring cached audio: %w", err)
		}
		art.Voice = res.Voice
		res.Audio = art
		res.ResponseAudio = ""
	}
	return res, nil
}

func observe(stage string, start time.Time) {
	telemetry.StageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func kindOf(err error) fault.Kind {
	if k := fault.KindOf(err); k != "" {
		return k
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	return "internal"
}
