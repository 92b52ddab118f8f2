package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-bot-fleet/internal/application"
	"telegram-bot-fleet/internal/infra/logging"
)

// Server is the administrative read/control surface over the bot pool. It
// talks to the pool strictly through its public interface.
type Server struct {
	pool   application.BotPool
	apiKey string
	auth   *AuthManager
	log    *zerolog.Logger
}

func NewServer(pool application.BotPool, apiKey string, auth *AuthManager, logger *zerolog.Logger) *Server {
	srvLog := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{pool: pool, apiKey: apiKey, auth: auth, log: &srvLog}
}

// Router builds the chi routing tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/api/v1/auth/session", s.handleSessionLogin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/stats", s.handleStats)
		r.Get("/bots", s.handleListBots)
		r.Post("/bots/{customerID}/check", s.handleCheckBot)
		r.Post("/pool/reload", s.handleReload)
	})
	return r
}

// requestID tags every request with a trace id for the logging context.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), id)))
	})
}

// authMiddleware accepts either the static API key as a bearer token or a
// JWT session minted by handleSessionLogin.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if bearer := bearerToken(r); bearer != "" && bearer == s.apiKey {
			next.ServeHTTP(w, r)
			return
		}
		if s.auth != nil {
			if _, err := s.auth.ParseFromRequest(r); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
