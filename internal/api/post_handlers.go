package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/postwatch-io/postwatch/internal/monitor"
)

type postRequest struct {
	URL string `json:"url"`
}

// addPost validates the post against the external provider before tracking
// it. Only posts the provider reports active are accepted.
func (s *Server) addPost(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	postURL := strings.TrimSpace(req.URL)
	if postURL == "" {
		writeError(w, http.StatusUnprocessableEntity, "url is required")
		return
	}

	status, err := s.checker.CheckStatus(r.Context(), postURL)
	if err != nil {
		if errors.Is(err, monitor.ErrInvalidPostURL) {
			writeError(w, http.StatusUnprocessableEntity, "malformed post URL")
			return
		}
		s.logger.Error("status check failed", zap.String("url", postURL), zap.Error(err))
		writeError(w, http.StatusBadGateway, "status provider unavailable")
		return
	}
	if status != monitor.StatusActive {
		writeError(w, http.StatusBadRequest, "post is inactive or does not exist")
		return
	}

	added, err := s.posts.Add(r.Context(), user.ID, postURL)
	if err != nil {
		s.logger.Error("add post failed", zap.String("url", postURL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !added {
		writeError(w, http.StatusConflict, "post already tracked")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": postURL})
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	urls, err := s.posts.ListForUser(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("list posts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"posts": urls})
}

// deletePost reads the post URL from the wildcard path remainder so URLs with
// embedded slashes work whether or not the client percent-encodes them.
func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	raw := chi.URLParam(r, "*")
	postURL, err := url.PathUnescape(raw)
	if err != nil {
		postURL = raw
	}
	if postURL == "" {
		writeError(w, http.StatusNotFound, "post not tracked")
		return
	}

	removed, err := s.posts.Remove(r.Context(), user.ID, postURL)
	if err != nil {
		s.logger.Error("remove post failed", zap.String("url", postURL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "post not tracked")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"msg": "post removed",
		"url": postURL,
	})
}
