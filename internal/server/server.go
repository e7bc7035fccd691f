package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/example/go-supertone/internal/audio"
	"github.com/example/go-supertone/internal/config"
	"github.com/example/go-supertone/internal/tts"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Request carries one synthesis request through the HTTP layer.
type Request struct {
	Text       string
	Voice      string
	Steps      int
	Speed      float64
	SilenceSec float64
}

// Result is the synthesized artifact: a WAV buffer plus its duration.
type Result struct {
	WAV         []byte
	DurationSec float64
}

// Synthesizer produces a WAV buffer from a synthesis request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Result, error)
}

// VoiceLister returns the list of available voices.
type VoiceLister interface {
	ListVoices() []tts.Voice
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		requestTimeout: 120 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /synthesize.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithRequestTimeout sets the per-request synthesis deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests. Synthesis
// runs under a mutex: the engine session is not re-entrant, so at most one
// request is inferenced at a time.
type handler struct {
	synth  Synthesizer
	voices VoiceLister
	opts   options
	mu     sync.Mutex
	log    *slog.Logger
}

// NewHandler returns an http.Handler serving /health, /voices and POST /synthesize.
func NewHandler(synth Synthesizer, voices VoiceLister, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		synth:  synth,
		voices: voices,
		opts:   opts,
		log:    opts.logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/voices", h.handleVoices)
	mux.HandleFunc("/synthesize", h.handleSynthesize)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

func (h *handler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	voices := h.voices.ListVoices()
	if voices == nil {
		voices = []tts.Voice{}
	}
	writeJSON(w, http.StatusOK, voices)
}

type synthesizeRequest struct {
	Text       string   `json:"text"`
	Voice      string   `json:"voice"`
	Steps      int      `json:"steps"`
	Speed      float64  `json:"speed"`
	SilenceSec *float64 `json:"silence_sec"`
}

func (h *handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text field is required")
		return
	}

	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return
	}

	silence := 0.3
	if req.SilenceSec != nil {
		silence = *req.SilenceSec
	}

	synthReq := Request{
		Text:       req.Text,
		Voice:      req.Voice,
		Steps:      req.Steps,
		Speed:      req.Speed,
		SilenceSec: silence,
	}

	// Serialize inference; honour context cancellation while waiting.
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := r.Context().Err(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for engine")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	result, err := h.synth.Synthesize(ctx, synthReq)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.log.WarnContext(r.Context(), "synthesis timed out",
				slog.String("voice", req.Voice),
				slog.Int("text_len", len(req.Text)),
				slog.Int64("duration_ms", durationMS),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusGatewayTimeout, "synthesis timed out")
			return
		}
		if errors.Is(err, tts.ErrInvalidStyle) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.ErrorContext(r.Context(), "synthesis failed",
			slog.String("voice", req.Voice),
			slog.Int("text_len", len(req.Text)),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "synthesis complete",
		slog.String("voice", req.Voice),
		slog.Int("text_len", len(req.Text)),
		slog.Int64("duration_ms", durationMS),
		slog.Int("wav_bytes", len(result.WAV)),
		slog.Float64("audio_sec", result.DurationSec),
	)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("X-Audio-Duration-Sec", fmt.Sprintf("%.3f", result.DurationSec))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.WAV)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// session-backed synthesizer
// ---------------------------------------------------------------------------

// SessionSynthesizer adapts a tts.Session plus a voice manifest into the
// Synthesizer contract, filling unset request fields from config defaults.
type SessionSynthesizer struct {
	session  *tts.Session
	voices   *tts.VoiceManager
	defaults config.SynthConfig

	styleMu sync.Mutex
	styles  map[string]*tts.Style
}

func NewSessionSynthesizer(session *tts.Session, voices *tts.VoiceManager, defaults config.SynthConfig) *SessionSynthesizer {
	return &SessionSynthesizer{
		session:  session,
		voices:   voices,
		defaults: defaults,
		styles:   make(map[string]*tts.Style),
	}
}

func (s *SessionSynthesizer) Synthesize(ctx context.Context, req Request) (Result, error) {
	style, err := s.styleFor(req.Voice)
	if err != nil {
		return Result{}, err
	}

	steps := req.Steps
	if steps == 0 {
		steps = s.defaults.TotalSteps
	}

	speed := req.Speed
	if speed == 0 {
		speed = s.defaults.Speed
	}

	samples, duration, err := s.session.Synthesize(ctx, tts.SynthesisRequest{
		Text:          req.Text,
		Style:         style,
		TotalSteps:    steps,
		Speed:         speed,
		SilenceSec:    req.SilenceSec,
		MaxChunkChars: s.defaults.MaxChunkChars,
	})
	if err != nil {
		return Result{}, err
	}

	wav, err := audio.EncodeWAVPCM16(samples, s.session.SampleRate())
	if err != nil {
		return Result{}, fmt.Errorf("encode WAV: %w", err)
	}

	return Result{WAV: wav, DurationSec: duration}, nil
}

// styleFor loads and caches the style for a voice id. Styles are immutable
// once loaded, so the cache is shared across requests.
func (s *SessionSynthesizer) styleFor(voice string) (*tts.Style, error) {
	if voice == "" {
		return nil, errors.New("voice field is required")
	}

	s.styleMu.Lock()
	defer s.styleMu.Unlock()

	if style, ok := s.styles[voice]; ok {
		return style, nil
	}

	style, err := s.voices.LoadVoice(voice)
	if err != nil {
		return nil, err
	}

	s.styles[voice] = style

	return style, nil
}

// ---------------------------------------------------------------------------
// Server wires the handler into a net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	session         *tts.Session
	voices          *tts.VoiceManager
	shutdownTimeout time.Duration
}

func New(cfg config.Config, session *tts.Session, voices *tts.VoiceManager) *Server {
	return &Server{
		cfg:             cfg,
		session:         session,
		voices:          voices,
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	synth := NewSessionSynthesizer(s.session, s.voices, s.cfg.Synth)

	h := NewHandler(synth, s.voices,
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}
