package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/dispatch"
	"github.com/nadzzz/voicedesk/internal/health"
	"github.com/nadzzz/voicedesk/internal/intent"
	"github.com/nadzzz/voicedesk/internal/intent/hosted"
	"github.com/nadzzz/voicedesk/internal/intent/keyword"
	"github.com/nadzzz/voicedesk/internal/langid"
	"github.com/nadzzz/voicedesk/internal/llm"
	"github.com/nadzzz/voicedesk/internal/llm/anthropic"
	"github.com/nadzzz/voicedesk/internal/llm/gemini"
	llmopenai "github.com/nadzzz/voicedesk/internal/llm/openai"
	"github.com/nadzzz/voicedesk/internal/message"
	"github.com/nadzzz/voicedesk/internal/reply"
	"github.com/nadzzz/voicedesk/internal/resilience"
	"github.com/nadzzz/voicedesk/internal/session"
	"github.com/nadzzz/voicedesk/internal/stt"
	sttlocal "github.com/nadzzz/voicedesk/internal/stt/local"
	sttopenai "github.com/nadzzz/voicedesk/internal/stt/openai"
	"github.com/nadzzz/voicedesk/internal/tts"
	ttsopenai "github.com/nadzzz/voicedesk/internal/tts/openai"
	"github.com/nadzzz/voicedesk/internal/tts/piper"
)

// pipeline holds the wired stages and what must be closed on shutdown.
type pipeline struct {
	deps dispatch.Deps
	opts dispatch.Options
}

func (p *pipeline) Close() {
	if p.deps.Synthesizer != nil {
		_ = p.deps.Synthesizer.Close()
	}
	if err := p.deps.Guard.Close(); err != nil {
		slog.Warn("closing session store", "error", err)
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config, hs *health.Server) (*pipeline, error) {
	policy := resilience.Policy{
		MaxRetries:       cfg.Resilience.MaxRetries,
		InitialInterval:  cfg.Resilience.InitialInterval,
		MaxInterval:      cfg.Resilience.MaxInterval,
		FailureThreshold: cfg.Resilience.FailureThreshold,
		OpenTimeout:      cfg.Resilience.OpenTimeout,
	}
	caller := func(name string) *resilience.Caller { return resilience.New(name, policy) }

	completer, err := newCompleter(cfg, caller)
	if err != nil {
		return nil, err
	}

	classifier, err := newClassifier(cfg.Classifier, completer)
	if err != nil {
		return nil, err
	}

	transcriber, err := newTranscriber(cfg, caller)
	if err != nil {
		return nil, err
	}

	var (
		synthesizer tts.Synthesizer
		languages   []string
	)
	if cfg.TTS.Enabled {
		var voices tts.VoiceTable
		synthesizer, voices, err = newSynthesizer(cfg, caller)
		if err != nil {
			return nil, err
		}
		for lang := range voices.Voices {
			languages = append(languages, lang)
		}
		sort.Strings(languages)
		slog.Info("tts enabled", "backend", synthesizer.Name(), "languages", languages)
	}

	store, err := newStore(ctx, cfg.Session, hs)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		deps: dispatch.Deps{
			Transcriber: transcriber,
			// The guesser only picks languages the reply can be spoken in.
			Resolver:    langid.New(cfg.Pipeline.DefaultLanguage, languages),
			Classifier:  classifier,
			Replier:     reply.New(completer, reply.Options{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens}),
			Synthesizer: synthesizer,
			Guard:       session.NewGuard(store, cfg.Pipeline.Cooldown),
		},
		opts: dispatch.Options{
			DefaultMode: message.ResponseMode(cfg.Pipeline.ResponseMode),
			Timeout:     cfg.Pipeline.Timeout,
			AudioDir:    cfg.Pipeline.AudioDir,
			Prompt:      stt.DomainPrompt,
		},
	}, nil
}

func newCompleter(cfg *config.Config, caller func(string) *resilience.Caller) (llm.Completer, error) {
	var c llm.Completer
	switch cfg.LLM.Provider {
	case "openai":
		c = llmopenai.New(cfg.Providers.OpenAI, caller("openai-chat"))
	case "gemini":
		c = gemini.New(cfg.Providers.Gemini, caller("gemini"))
	case "anthropic":
		c = anthropic.New(cfg.Providers.Anthropic, caller("anthropic"))
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	slog.Info("using chat provider", "provider", c.Name())
	return c, nil
}

func newClassifier(cfg config.ClassifierConfig, completer llm.Completer) (intent.Classifier, error) {
	switch cfg.Backend {
	case "keyword":
		rules := keyword.DefaultRules()
		if cfg.RulesFile != "" {
			loaded, err := keyword.LoadRules(cfg.RulesFile)
			if err != nil {
				return nil, err
			}
			rules = loaded
		}
		slog.Info("using keyword classifier", "rules", len(rules), "rules_file", cfg.RulesFile)
		return keyword.New(rules), nil
	case "hosted":
		c, err := hosted.New(completer)
		if err != nil {
			return nil, fmt.Errorf("building hosted classifier: %w", err)
		}
		slog.Info("using hosted classifier", "name", c.Name())
		return c, nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}

func newTranscriber(cfg *config.Config, caller func(string) *resilience.Caller) (stt.Transcriber, error) {
	switch cfg.STT.Backend {
	case "openai":
		slog.Info("using OpenAI transcription", "model", cfg.Providers.OpenAI.TranscriptionModel)
		return sttopenai.New(cfg.Providers.OpenAI, caller("openai-stt")), nil
	case "local":
		slog.Info("using local transcription", "endpoint", cfg.STT.Local.Endpoint, "type", cfg.STT.Local.Type)
		return sttlocal.New(cfg.STT.Local, caller("whisper")), nil
	default:
		return nil, fmt.Errorf("unknown stt backend %q", cfg.STT.Backend)
	}
}

func newSynthesizer(cfg *config.Config, caller func(string) *resilience.Caller) (tts.Synthesizer, tts.VoiceTable, error) {
	switch cfg.TTS.Backend {
	case "openai":
		voices, err := tts.NewVoiceTable(cfg.Pipeline.DefaultLanguage, ttsopenai.DefaultVoices, cfg.TTS.Voices)
		if err != nil {
			return nil, tts.VoiceTable{}, err
		}
		return ttsopenai.New(cfg.Providers.OpenAI, voices, caller("openai-tts")), voices, nil
	case "piper":
		voices, err := tts.NewVoiceTable(cfg.Pipeline.DefaultLanguage, piper.DefaultVoices, cfg.TTS.Voices)
		if err != nil {
			return nil, tts.VoiceTable{}, err
		}
		return piper.New(cfg.TTS.Piper, voices, caller("piper")), voices, nil
	default:
		return nil, tts.VoiceTable{}, fmt.Errorf("unknown tts backend %q", cfg.TTS.Backend)
	}
}

func newStore(ctx context.Context, cfg config.SessionConfig, hs *health.Server) (session.Store, error) {
	switch cfg.Store {
	case "memory":
		return session.NewMemoryStore(cfg.TTL), nil
	case "redis":
		s, err := session.NewRedisStore(ctx, cfg.Redis, cfg.TTL)
		if err != nil {
			return nil, err
		}
		hs.AddCheck("redis", s.Ping)
		slog.Info("using redis session store", "addr", cfg.Redis.Addr)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}
