package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"telegram-bot-fleet/internal/domain"
	"telegram-bot-fleet/internal/domain/model"
)

// handleSessionLogin exchanges the static API key for a short-lived JWT
// session cookie, so dashboards do not have to hold the key per request.
func (s *Server) handleSessionLogin(w http.ResponseWriter, r *http.Request) {
	if s.apiKey == "" || s.auth == nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if bearerToken(r) != s.apiKey {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("minting session failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pool.Stats())
}

func (s *Server) handleListBots(w http.ResponseWriter, _ *http.Request) {
	views := s.pool.List()
	response := struct {
		Data  []model.BotView `json:"data"`
		Total int             `json:"total"`
	}{
		Data:  views,
		Total: len(views),
	}
	writeJSON(w, http.StatusOK, response)
}

// handleCheckBot runs a live validation round trip for one bot and returns
// the refreshed status.
func (s *Server) handleCheckBot(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	status, err := s.pool.CheckStatus(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Bot not found", http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Str("customer_id", customerID).Msg("status check failed")
		http.Error(w, "Status check failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		CustomerID string          `json:"customer_id"`
		Status     model.BotStatus `json:"status"`
	}{customerID, status})
}

// handleReload forces an immediate full resynchronization of the pool.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Reload(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("on-demand reload failed")
		http.Error(w, "Reload failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, s.pool.Stats())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
