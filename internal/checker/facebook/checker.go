// Package facebook implements the post status checker against the Graph API.
package facebook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/postwatch-io/postwatch/internal/monitor"
)

// DefaultBaseURL is the Graph API root used when no override is configured.
const DefaultBaseURL = "https://graph.facebook.com/v17.0"

// Config controls the Graph API client.
type Config struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

// Checker resolves a post URL of the form
// https://www.facebook.com/{pageID}/posts/{postID} into a Graph API object
// lookup. A 200 response means the post is active; any other status means it
// is inactive or gone.
type Checker struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// New constructs a Checker with a bounded request timeout.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// CheckStatus implements monitor.StatusChecker.
func (c *Checker) CheckStatus(ctx context.Context, postURL string) (monitor.PostStatus, error) {
	graphID, err := parseGraphID(postURL)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s", strings.TrimRight(c.cfg.BaseURL, "/"), graphID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}
	q := req.URL.Query()
	q.Set("access_token", c.cfg.AccessToken)
	q.Set("fields", "id,message,created_time,story,permalink_url")
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("graph api request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusOK {
		return monitor.StatusActive, nil
	}
	c.logger.Debug("graph api reported post inactive",
		zap.String("url", postURL),
		zap.Int("status_code", resp.StatusCode),
	)
	return monitor.StatusInactive, nil
}

// parseGraphID extracts {pageID}_{postID} from a post URL. The path must
// contain at least {pageID}/posts/{postID}.
func parseGraphID(postURL string) (string, error) {
	parsed, err := url.Parse(postURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", monitor.ErrInvalidPostURL, postURL)
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 3 || segments[1] != "posts" {
		return "", fmt.Errorf("%w: %s", monitor.ErrInvalidPostURL, postURL)
	}
	return segments[0] + "_" + segments[2], nil
}
