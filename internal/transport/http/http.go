// Package http implements the HTTP transport for voicedesk.
//
// It exposes a small REST API: POST /v1/query accepts typed text or audio
// (JSON with base64 audio, or the raw audio bytes as the request body) and
// returns the classified intent and reply. Clients that send
// "Accept: audio/wav" get the synthesized reply as the response body.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/message"
	"github.com/nadzzz/voicedesk/internal/transport"
)

// Request headers.
const (
	HeaderSession      = "X-Session-ID"
	HeaderSource       = "X-Voicedesk-Source"
	HeaderResponseMode = "X-Voicedesk-Response-Mode"
)

// Response headers set when the body is raw audio.
const (
	HeaderIntent      = "X-Voicedesk-Intent"
	HeaderLanguage    = "X-Voicedesk-Language"
	HeaderRateLimited = "X-Voicedesk-Rate-Limited"
)

const defaultMaxBody = 25 << 20

// QueryRequest is the JSON body of POST /v1/query.
type QueryRequest struct {
	Session      string               `json:"session,omitempty"`
	Source       string               `json:"source,omitempty"`
	Text         string               `json:"text,omitempty" example:"mera UPI fail ho gaya"`
	Audio        []byte               `json:"audio,omitempty" swaggertype:"string" format:"base64"`
	ContentType  string               `json:"content_type,omitempty" example:"audio/wav"`
	ResponseMode message.ResponseMode `json:"response_mode,omitempty" enums:"text,audio,text+audio"`
}

// ResetResponse is returned by POST /v1/session/reset.
type ResetResponse struct {
	Session string `json:"session"`
	Status  string `json:"status" example:"reset"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port    int
	maxBody int64
	server  *http.Server
}

// New creates an HTTP transport from config.
func New(cfg config.HTTPConfig) *Transport {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Transport{port: cfg.Port, maxBody: maxBody}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler builds the route table for svc.
func (t *Transport) Handler(svc transport.Service) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		t.handleQuery(w, r, svc)
	})
	mux.HandleFunc("POST /v1/session/reset", func(w http.ResponseWriter, r *http.Request) {
		t.handleReset(w, r, svc)
	})

	// Swagger UI over the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

// Listen starts the HTTP server and routes incoming requests to svc.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

// handleQuery processes a POST /v1/query request.
//
// @Summary     Classify a banking query and reply
// @Description Accepts typed text or audio. JSON bodies carry audio as base64; any other
// @Description Content-Type is treated as the raw audio bytes. The query is transcribed,
// @Description classified into one banking intent, answered and optionally spoken.
// @Description Within the session cooldown the previous result is returned with rate_limited=true.
// @Tags        query
// @Accept      json
// @Accept      audio/wav
// @Accept      audio/mpeg
// @Produce     json
// @Produce     audio/wav
// @Param       request        body    QueryRequest  true   "Query (JSON). For raw audio, POST the bytes with the audio Content-Type."
// @Param       X-Session-ID   header  string        false  "Session key; generated and echoed back when absent"
// @Param       X-Voicedesk-Source         header  string  false  "Sender identifier"
// @Param       X-Voicedesk-Response-Mode  header  string  false  "text, audio or text+audio (raw audio uploads)"
// @Success     200  {object}  message.Result
// @Failure     400  {object}  ErrorResponse  "Invalid input"
// @Failure     503  {object}  ErrorResponse  "A hosted service failed"
// @Router      /v1/query [post]
func (t *Transport) handleQuery(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	r.Body = http.MaxBytesReader(w, r.Body, t.maxBody)

	msg, err := decodeQuery(r)
	if err != nil {
		writeError(w, fault.E(fault.KindInvalidInput, "http.decode", err))
		return
	}
	w.Header().Set(HeaderSession, msg.Session)

	res, err := svc.Handle(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() {
		if err := res.Release(); err != nil {
			slog.Warn("releasing reply audio", "message_id", msg.ID, "error", err)
		}
	}()

	if wantsAudioBody(r) && res.Audio != nil {
		data, err := res.Audio.Bytes()
		if err != nil {
			writeError(w, fmt.Errorf("reading reply audio: %w", err))
			return
		}
		w.Header().Set("Content-Type", res.Audio.ContentType)
		w.Header().Set(HeaderIntent, res.Intent)
		w.Header().Set(HeaderLanguage, res.Language)
		if res.RateLimited {
			w.Header().Set(HeaderRateLimited, "true")
		}
		_, _ = w.Write(data)
		return
	}

	if err := res.InlineAudio(); err != nil {
		writeError(w, fmt.Errorf("reading reply audio: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReset processes a POST /v1/session/reset request.
//
// @Summary     Reset a session
// @Description Clears the cached result and the cooldown so the next query runs immediately.
// @Tags        session
// @Produce     json
// @Param       X-Session-ID  header  string  true  "Session key"
// @Success     200  {object}  ResetResponse
// @Failure     400  {object}  ErrorResponse
// @Router      /v1/session/reset [post]
func (t *Transport) handleReset(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	sess := strings.TrimSpace(r.Header.Get(HeaderSession))
	if sess == "" {
		writeError(w, fault.Errorf(fault.KindInvalidInput, "http.reset", "%s header is required", HeaderSession))
		return
	}
	if err := svc.Reset(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(HeaderSession, sess)
	writeJSON(w, http.StatusOK, ResetResponse{Session: sess, Status: "reset"})
}

// --- Internal helpers ---

func decodeQuery(r *http.Request) (*message.Message, error) {
	msg := &message.Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		msg.Session = req.Session
		msg.Source = req.Source
		msg.Text = req.Text
		msg.Audio = req.Audio
		msg.ContentType = req.ContentType
		msg.ResponseMode = req.ResponseMode
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("reading audio: %w", err)
		}
		msg.Audio = data
		msg.ContentType = mediaType
		msg.ResponseMode = message.ResponseMode(r.Header.Get(HeaderResponseMode))
	}

	if src := r.Header.Get(HeaderSource); src != "" {
		msg.Source = src
	}
	if msg.Source == "" {
		msg.Source = "http"
	}
	if sess := strings.TrimSpace(r.Header.Get(HeaderSession)); sess != "" {
		msg.Session = sess
	}
	if msg.Session == "" {
		msg.Session = uuid.NewString()
	}
	return msg, nil
}

func wantsAudioBody(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := mime.ParseMediaType(strings.TrimSpace(part))
		if strings.HasPrefix(mt, "audio/") {
			return true
		}
	}
	return false
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch fault.KindOf(err) {
	case fault.KindInvalidInput:
		return http.StatusBadRequest
	case fault.KindRateLimited:
		return http.StatusTooManyRequests
	case fault.KindTranscription, fault.KindClassification, fault.KindGeneration, fault.KindSynthesis:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= 500 {
		slog.Error("query failed", "status", code, "error", err)
	}
	writeJSON(w, code, ErrorResponse{Error: fault.UserMessage(err), Kind: string(fault.KindOf(err))})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
