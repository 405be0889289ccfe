// Package config handles loading and validating the voicedesk configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/nadzzz/voicedesk/internal/fault"
)

// Config is the root configuration for the voicedesk daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	LLM        LLMConfig        `mapstructure:"llm"`
	STT        STTConfig        `mapstructure:"stt"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Session    SessionConfig    `mapstructure:"session"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Logging    LoggingConfig    `mapstructure:"logging"`

	v *viper.Viper
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`

	// MaxRecvBytes caps one request message. Zero derives it from
	// transports.http.max_body_bytes, grown for base64 audio in the JSON codec.
	MaxRecvBytes int `mapstructure:"max_recv_bytes"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled      bool  `mapstructure:"enabled"`
	Port         int   `mapstructure:"port"`
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// PipelineConfig holds dispatcher-wide settings.
type PipelineConfig struct {
	DefaultLanguage string        `mapstructure:"default_language"` // ISO-639-1, used when nothing else is known
	ResponseMode    string        `mapstructure:"response_mode"`    // text, audio, text+audio
	Cooldown        time.Duration `mapstructure:"cooldown"`
	Timeout         time.Duration `mapstructure:"timeout"`
	AudioDir        string        `mapstructure:"audio_dir"` // where reply artifacts are written; empty means os.TempDir
}

// ClassifierConfig selects the intent classifier.
type ClassifierConfig struct {
	Backend   string `mapstructure:"backend"`    // "keyword" or "hosted"
	RulesFile string `mapstructure:"rules_file"` // optional YAML override for the keyword table
}

// LLMConfig selects the hosted chat provider used by the reply generator
// and the hosted classifier.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // "openai", "gemini" or "anthropic"
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// STTConfig selects the transcription backend.
type STTConfig struct {
	Backend string             `mapstructure:"backend"` // "openai" or "local"
	Local   LocalWhisperConfig `mapstructure:"local"`
}

// LocalWhisperConfig holds self-hosted Whisper settings.
type LocalWhisperConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Type      string `mapstructure:"type"` // "openai" (default) or "asr" (ahmetoner/whisper-asr-webservice)
	VADFilter bool   `mapstructure:"vad_filter"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Backend string            `mapstructure:"backend"` // "openai" or "piper"
	Voices  map[string]string `mapstructure:"voices"`  // ISO-639-1 -> voice, merged over the backend defaults
	Piper   PiperConfig       `mapstructure:"piper"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// Endpoints maps ISO-639-1 codes to per-language instances and takes
// precedence; Endpoint is then the fallback.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`
	Endpoints map[string]string `mapstructure:"endpoints"`
}

// SessionConfig selects where the cooldown guard keeps its state.
type SessionConfig struct {
	Store string        `mapstructure:"store"` // "memory" or "redis"
	TTL   time.Duration `mapstructure:"ttl"`
	Redis RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds go-redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ResilienceConfig tunes retries and circuit breakers for hosted calls.
type ResilienceConfig struct {
	MaxRetries       uint64        `mapstructure:"max_retries"`
	InitialInterval  time.Duration `mapstructure:"initial_interval"`
	MaxInterval      time.Duration `mapstructure:"max_interval"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

// ProvidersConfig holds credentials and models per hosted provider.
type ProvidersConfig struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	ChatModel          string `mapstructure:"chat_model"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	TTSModel           string `mapstructure:"tts_model"`
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// AnthropicConfig holds Anthropic Messages API settings.
type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	File       string `mapstructure:"file"`   // optional rotating log file
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./voicedesk.yaml, ./configs/voicedesk.yaml, /etc/voicedesk/voicedesk.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("voicedesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/voicedesk")
	}

	// Environment variables: VOICEDESK_LLM_PROVIDER, VOICEDESK_PROVIDERS_OPENAI_API_KEY, etc.
	v.SetEnvPrefix("VOICEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file is optional; env vars and defaults are sufficient.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.v = v

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}").
	cfg.Providers.OpenAI.APIKey = resolveEnvRef(cfg.Providers.OpenAI.APIKey)
	cfg.Providers.Gemini.APIKey = resolveEnvRef(cfg.Providers.Gemini.APIKey)
	cfg.Providers.Anthropic.APIKey = resolveEnvRef(cfg.Providers.Anthropic.APIKey)
	cfg.Session.Redis.Password = resolveEnvRef(cfg.Session.Redis.Password)

	if cfg.Transports.GRPC.MaxRecvBytes == 0 && cfg.Transports.HTTP.MaxBodyBytes > 0 {
		cfg.Transports.GRPC.MaxRecvBytes = int(cfg.Transports.HTTP.MaxBodyBytes*4/3) + grpcEnvelopeBytes
	}

	return &cfg, nil
}

// grpcEnvelopeBytes is headroom for the JSON fields around the audio.
const grpcEnvelopeBytes = 64 << 10

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.max_body_bytes", 25<<20)
	v.SetDefault("transports.grpc.max_recv_bytes", 0)
	v.SetDefault("pipeline.default_language", "en")
	v.SetDefault("pipeline.response_mode", "text")
	v.SetDefault("pipeline.cooldown", 15*time.Second)
	v.SetDefault("pipeline.timeout", 60*time.Second)
	v.SetDefault("classifier.backend", "keyword")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("stt.backend", "openai")
	v.SetDefault("stt.local.endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("stt.local.type", "openai")
	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.backend", "openai")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.prefix", "voicedesk:session:")
	v.SetDefault("resilience.max_retries", 1)
	v.SetDefault("resilience.initial_interval", 200*time.Millisecond)
	v.SetDefault("resilience.max_interval", 2*time.Second)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.open_timeout", 30*time.Second)
	// Empty defaults make the keys visible to AutomaticEnv during Unmarshal.
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.base_url", "")
	v.SetDefault("providers.gemini.api_key", "")
	v.SetDefault("providers.anthropic.api_key", "")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("classifier.rules_file", "")
	v.SetDefault("pipeline.audio_dir", "")
	v.SetDefault("logging.file", "")
	v.SetDefault("providers.openai.chat_model", "gpt-4o-mini")
	v.SetDefault("providers.openai.transcription_model", "whisper-1")
	v.SetDefault("providers.openai.tts_model", "tts-1")
	v.SetDefault("providers.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("providers.gemini.model", "gemini-1.5-flash")
	v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("providers.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// Validate checks that every selected backend is known and has what it
// needs to start. A missing credential is a configuration fault.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	openAIKey := c.Providers.OpenAI.APIKey != ""

	switch c.Classifier.Backend {
	case "keyword", "hosted":
	default:
		check(false, "unknown classifier backend %q", c.Classifier.Backend)
	}

	switch c.LLM.Provider {
	case "openai":
		check(openAIKey, "llm provider openai: providers.openai.api_key is required")
	case "gemini":
		check(c.Providers.Gemini.APIKey != "", "llm provider gemini: providers.gemini.api_key is required")
	case "anthropic":
		check(c.Providers.Anthropic.APIKey != "", "llm provider anthropic: providers.anthropic.api_key is required")
	default:
		check(false, "unknown llm provider %q", c.LLM.Provider)
	}

	switch c.STT.Backend {
	case "openai":
		check(openAIKey, "stt backend openai: providers.openai.api_key is required")
	case "local":
		check(c.STT.Local.Endpoint != "", "stt backend local: stt.local.endpoint is required")
	default:
		check(false, "unknown stt backend %q", c.STT.Backend)
	}

	if c.TTS.Enabled {
		switch c.TTS.Backend {
		case "openai":
			check(openAIKey, "tts backend openai: providers.openai.api_key is required")
		case "piper":
			check(c.TTS.Piper.Endpoint != "" || len(c.TTS.Piper.Endpoints) > 0, "tts backend piper: tts.piper.endpoint is required")
		default:
			check(false, "unknown tts backend %q", c.TTS.Backend)
		}
	}

	switch c.Session.Store {
	case "memory":
	case "redis":
		check(c.Session.Redis.Addr != "", "session store redis: session.redis.addr is required")
	default:
		check(false, "unknown session store %q", c.Session.Store)
	}

	switch c.Pipeline.ResponseMode {
	case "text", "audio", "text+audio":
		check(c.Pipeline.ResponseMode == "text" || c.TTS.Enabled, "response mode %q needs tts.enabled", c.Pipeline.ResponseMode)
	default:
		check(false, "unknown response mode %q", c.Pipeline.ResponseMode)
	}
	check(len(c.Pipeline.DefaultLanguage) == 2, "pipeline.default_language must be an ISO-639-1 code, got %q", c.Pipeline.DefaultLanguage)
	check(c.Pipeline.Cooldown >= 0, "pipeline.cooldown must not be negative")
	check(c.Session.TTL == 0 || c.Session.TTL >= c.Pipeline.Cooldown,
		"session.ttl (%s) must be zero or at least pipeline.cooldown (%s)", c.Session.TTL, c.Pipeline.Cooldown)
	check(c.Transports.GRPC.Enabled || c.Transports.HTTP.Enabled, "no transports enabled")

	if len(errs) > 0 {
		return fault.E(fault.KindConfiguration, "config.validate", errors.Join(errs...))
	}
	return nil
}

// WatchLogLevel re-applies logging.level whenever the config file changes.
// Other settings need a restart. It is a no-op without a config file.
func (c *Config) WatchLogLevel(level *slog.LevelVar) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		next := ParseLevel(c.v.GetString("logging.level"))
		if next != level.Level() {
			slog.Info("log level changed", "from", level.Level().String(), "to", next.String(), "file", e.Name)
			level.Set(next)
		}
	})
	c.v.WatchConfig()
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}
