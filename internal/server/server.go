package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"cryptosight-backend/internal/config"
	"cryptosight-backend/internal/store"
	"cryptosight-backend/internal/types"
)

// chatTimeout bounds one bot turn, including market lookups.
const chatTimeout = 20 * time.Second

// Responder produces the bot's reply for one chat turn.
type Responder interface {
	Respond(ctx context.Context, message string, c types.Context) (*types.ChatResponse, error)
}

type Server struct {
	router      *chi.Mux
	cfg         config.Config
	engine      Responder
	transcripts store.TranscriptStore
	limiter     *ipLimiter
	logger      zerolog.Logger
}

func NewServer(cfg config.Config, engine Responder, transcripts store.TranscriptStore, logger zerolog.Logger) *Server {
	r := chi.NewRouter()
	s := &Server{
		router:      r,
		cfg:         cfg,
		engine:      engine,
		transcripts: transcripts,
		limiter:     newIPLimiter(cfg.RateLimitPerMinute),
		logger:      logger,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	// A wildcard origin is echoed back per request, so credentials are only
	// allowed once a concrete origin is configured.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", CSRFHeaderName},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: cfg.AllowedOrigin != "*",
		MaxAge:           300,
	}))
	r.Use(s.csrf)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "Invalid request method")
	})
	s.router.Get("/api/health", s.handleHealth)
	s.router.With(s.rateLimit).Post("/chat/", s.handleChat)
	s.router.Get("/chat/history", s.handleHistory)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sid := s.getOrCreateSessionID(r, w)
	logger := reqLogger(r).With().Str("component", "chat").Str("session", sid).Logger()

	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()
	resp, err := s.engine.Respond(ctx, req.Message, req.Context)
	if err != nil {
		logger.Error().Err(err).Msg("chat turn failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "An error occurred: " + err.Error()})
		return
	}

	if strings.TrimSpace(req.Message) != types.InitMessage {
		s.record(r.Context(), logger, sid, store.RoleUser, req.Message)
	}
	if resp.Message != "" {
		s.record(r.Context(), logger, sid, store.RoleBot, resp.Message)
	}

	w.Header().Set("X-Session-Id", sid)
	writeJSON(w, http.StatusOK, resp)
}

// record appends to the transcript; failures never fail the turn.
func (s *Server) record(ctx context.Context, logger zerolog.Logger, sid, role, content string) {
	if err := s.transcripts.Append(ctx, sid, store.Message{Role: role, Content: content}); err != nil {
		logger.Warn().Err(err).Str("role", role).Msg("failed to store transcript line")
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	out := types.HistoryResponse{Messages: []types.HistoryMessage{}}
	sid := getSessionID(r)
	if sid == "" {
		writeJSON(w, http.StatusOK, out)
		return
	}
	msgs, err := s.transcripts.Get(r.Context(), sid)
	if err != nil {
		reqLogger(r).Error().Err(err).Str("component", "store").Str("session", sid).Msg("failed to load transcript")
		s.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	out.SessionID = sid
	for _, m := range msgs {
		out.Messages = append(out.Messages, types.HistoryMessage{Role: m.Role, Content: m.Content})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) getOrCreateSessionID(r *http.Request, w http.ResponseWriter) string {
	sid := getSessionID(r)
	if sid == "" {
		sid = newSessionID()
		reqLogger(r).Debug().Str("component", "session").Str("session", sid).Msg("creating new session")
	}
	// Refresh on every turn so an active chat does not expire.
	SetSessionCookie(w, sid)
	return sid
}
