package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/postwatch-io/postwatch/internal/monitor"
)

type webhookRequest struct {
	URL string `json:"url"`
}

func (s *Server) setWebhook(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	hook := strings.TrimSpace(req.URL)
	if !validWebhookURL(hook) {
		writeError(w, http.StatusUnprocessableEntity, "invalid webhook URL")
		return
	}

	if err := s.users.SetWebhook(r.Context(), user.ID, hook); err != nil {
		s.logger.Error("set webhook failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"webhook": hook})
}

func (s *Server) getWebhook(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	hook, err := s.users.Webhook(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, monitor.ErrNotFound) {
			writeError(w, http.StatusNotFound, "webhook not configured")
			return
		}
		s.logger.Error("webhook lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"webhook": hook})
}

// verifyWebhook probes the submitted URL with a test delivery and reports
// reachability without persisting anything.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	hook := strings.TrimSpace(req.URL)
	if !validWebhookURL(hook) {
		writeError(w, http.StatusUnprocessableEntity, "invalid webhook URL")
		return
	}

	active := s.verifier.Verify(r.Context(), hook)
	writeJSON(w, http.StatusOK, map[string]any{
		"webhook": hook,
		"active":  active,
	})
}

func validWebhookURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
