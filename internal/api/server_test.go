package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postwatch-io/postwatch/internal/auth"
	"github.com/postwatch-io/postwatch/internal/clock/system"
	"github.com/postwatch-io/postwatch/internal/id/uuid"
	"github.com/postwatch-io/postwatch/internal/monitor"
	"github.com/postwatch-io/postwatch/internal/store/memory"
)

type stubChecker struct {
	statuses map[string]monitor.PostStatus
	errs     map[string]error
}

func (c *stubChecker) CheckStatus(_ context.Context, u string) (monitor.PostStatus, error) {
	if err, ok := c.errs[u]; ok {
		return "", err
	}
	if status, ok := c.statuses[u]; ok {
		return status, nil
	}
	return monitor.StatusActive, nil
}

type stubVerifier struct {
	active bool
	seen   []string
}

func (v *stubVerifier) Verify(_ context.Context, hook string) bool {
	v.seen = append(v.seen, hook)
	return v.active
}

type apiFixture struct {
	ts       *httptest.Server
	store    *memory.Store
	checker  *stubChecker
	verifier *stubVerifier
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := memory.New()
	clk := system.New()
	authMgr := auth.New(store, clk, auth.Config{
		Secret:     "test-secret",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		BcryptCost: 4,
	})
	checker := &stubChecker{
		statuses: map[string]monitor.PostStatus{},
		errs:     map[string]error{},
	}
	verifier := &stubVerifier{active: true}

	srv := NewServer(store, store, authMgr, checker, verifier,
		uuid.NewUUIDGenerator(), clk, zap.NewNop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &apiFixture{ts: ts, store: store, checker: checker, verifier: verifier}
}

// do issues a request with an optional bearer token and JSON body, returning
// the status code and decoded body.
func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

// registerUser creates an account and returns the access and refresh tokens.
func (f *apiFixture) registerUser(t *testing.T, email string) (access, refresh string) {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/register", "", map[string]string{
		"username": email,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, status)
	access, _ = body["access_token"].(string)
	refresh, _ = body["refresh_token"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	return access, refresh
}

func TestTimeoutKeepsJSONErrorShape(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	h := timeoutMiddleware(20 * time.Millisecond)(slow)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "request timed out", body["error"])
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "healthy", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	resp, err := f.ts.Client().Get(f.ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodPost, "/register", "", map[string]string{
		"username": "alice@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "bearer", body["token_type"])
	require.NotEmpty(t, body["user_id"])
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAPIFixture(t)
	f.registerUser(t, "alice@example.com")

	// Same address with different case still collides.
	status, body := f.do(t, http.MethodPost, "/register", "", map[string]string{
		"username": "ALICE@example.com",
		"password": "other",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "email already registered", body["error"])
}

func TestRegisterMissingFields(t *testing.T) {
	f := newAPIFixture(t)
	for _, req := range []map[string]string{
		{"username": "", "password": "x"},
		{"username": "a@b.com", "password": ""},
		{},
	} {
		status, body := f.do(t, http.MethodPost, "/register", "", req)
		require.Equal(t, http.StatusUnprocessableEntity, status)
		require.NotEmpty(t, body["error"])
	}
}

func TestLogin(t *testing.T) {
	f := newAPIFixture(t)
	f.registerUser(t, "alice@example.com")

	status, body := f.do(t, http.MethodPost, "/login", "", map[string]string{
		"username": "alice@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "bearer", body["token_type"])
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
}

func TestLoginBadCredentials(t *testing.T) {
	f := newAPIFixture(t)
	f.registerUser(t, "alice@example.com")

	// Wrong password and unknown user produce the same response.
	for _, req := range []map[string]string{
		{"username": "alice@example.com", "password": "wrong"},
		{"username": "nobody@example.com", "password": "hunter22"},
	} {
		status, body := f.do(t, http.MethodPost, "/login", "", req)
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "invalid credentials", body["error"])
	}
}

func TestRefreshToken(t *testing.T) {
	f := newAPIFixture(t)
	_, refresh := f.registerUser(t, "alice@example.com")

	status, body := f.do(t, http.MethodPost, "/refresh_token", "", map[string]string{
		"token": refresh,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "bearer", body["token_type"])

	// The minted access token must work on a protected route.
	access, _ := body["access_token"].(string)
	status, _ = f.do(t, http.MethodGet, "/posts", access, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")

	status, body := f.do(t, http.MethodPost, "/refresh_token", "", map[string]string{
		"token": access,
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "invalid refresh token", body["error"])
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	f := newAPIFixture(t)
	_, refresh := f.registerUser(t, "alice@example.com")

	cases := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"refresh as access", refresh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodGet, "/posts", tc.token, nil)
			require.Equal(t, http.StatusUnauthorized, status)
			require.Equal(t, "unauthorized", body["error"])
		})
	}
}

func TestAddAndListPosts(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")
	post := "https://facebook.com/page/posts/123"
	f.checker.statuses[post] = monitor.StatusActive

	status, body := f.do(t, http.MethodPost, "/posts", access, map[string]string{"url": post})
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, post, body["url"])

	status, body = f.do(t, http.MethodGet, "/posts", access, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []any{post}, body["posts"])
}

func TestListPostsEmpty(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")

	status, body := f.do(t, http.MethodGet, "/posts", access, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []any{}, body["posts"])
}

func TestAddPostRejectsInactive(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")
	post := "https://facebook.com/page/posts/gone"
	f.checker.statuses[post] = monitor.StatusInactive

	status, body := f.do(t, http.MethodPost, "/posts", access, map[string]string{"url": post})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "post is inactive or does not exist", body["error"])

	status, body = f.do(t, http.MethodGet, "/posts", access, nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body["posts"])
}

func TestAddPostRejectsMalformedURL(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")
	post := "https://facebook.com/not-a-post"
	f.checker.errs[post] = monitor.ErrInvalidPostURL

	status, body := f.do(t, http.MethodPost, "/posts", access, map[string]string{"url": post})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "malformed post URL", body["error"])
}

func TestAddPostProviderUnavailable(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")
	post := "https://facebook.com/page/posts/123"
	f.checker.errs[post] = errors.New("connection refused")

	status, body := f.do(t, http.MethodPost, "/posts", access, map[string]string{"url": post})
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, "status provider unavailable", body["error"])
}

func TestAddPostDuplicate(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")
	post := "https://facebook.com/page/posts/123"

	status, _ := f.do(t, http.MethodPost, "/posts", access, map[string]string{"url": post})
	require.Equal(t, http.StatusCreated, status)

	status, body := f.do(t, http.MethodPost, "/posts", access, map[string]string{"url": post})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "post already tracked", body["error"])
}

func TestDeletePostEncodedURL(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")
	post := "https://facebook.com/page/posts/123"

	status, _ := f.do(t, http.MethodPost, "/posts", access, map[string]string{"url": post})
	require.Equal(t, http.StatusCreated, status)

	status, body := f.do(t, http.MethodDelete, "/posts/"+url.PathEscape(post), access, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "post removed", body["msg"])
	require.Equal(t, post, body["url"])

	status, body = f.do(t, http.MethodGet, "/posts", access, nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body["posts"])
}

func TestDeletePostToleratesTrailingSlash(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")
	post := "https://facebook.com/page/posts/123"

	status, _ := f.do(t, http.MethodPost, "/posts", access, map[string]string{"url": post})
	require.Equal(t, http.StatusCreated, status)

	// Deleting the slash-toggled form still matches the tracked URL.
	status, _ = f.do(t, http.MethodDelete, "/posts/"+url.PathEscape(post+"/"), access, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestDeletePostNotTracked(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")

	status, body := f.do(t, http.MethodDelete,
		"/posts/"+url.PathEscape("https://facebook.com/page/posts/999"), access, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "post not tracked", body["error"])
}

func TestPostsAreScopedPerUser(t *testing.T) {
	f := newAPIFixture(t)
	aliceTok, _ := f.registerUser(t, "alice@example.com")
	bobTok, _ := f.registerUser(t, "bob@example.com")
	post := "https://facebook.com/page/posts/123"

	status, _ := f.do(t, http.MethodPost, "/posts", aliceTok, map[string]string{"url": post})
	require.Equal(t, http.StatusCreated, status)

	// Bob cannot see or delete Alice's post.
	status, body := f.do(t, http.MethodGet, "/posts", bobTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body["posts"])

	status, _ = f.do(t, http.MethodDelete, "/posts/"+url.PathEscape(post), bobTok, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestWebhookRoundTrip(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")
	hook := "https://hooks.example.com/alice?key=val"

	status, body := f.do(t, http.MethodPost, "/config/webhook", access, map[string]string{"url": hook})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, hook, body["webhook"])

	status, body = f.do(t, http.MethodGet, "/config/webhook", access, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, hook, body["webhook"])
}

func TestWebhookNotConfigured(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")

	status, body := f.do(t, http.MethodGet, "/config/webhook", access, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "webhook not configured", body["error"])
}

func TestWebhookReplacedOnSecondSet(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")

	status, _ := f.do(t, http.MethodPost, "/config/webhook", access,
		map[string]string{"url": "https://hooks.example.com/v1"})
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodPost, "/config/webhook", access,
		map[string]string{"url": "https://hooks.example.com/v2"})
	require.Equal(t, http.StatusOK, status)

	status, body := f.do(t, http.MethodGet, "/config/webhook", access, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://hooks.example.com/v2", body["webhook"])
}

func TestWebhookRejectsInvalidURL(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")

	for _, bad := range []string{"", "not-a-url", "ftp://example.com/hook"} {
		status, body := f.do(t, http.MethodPost, "/config/webhook", access,
			map[string]string{"url": bad})
		require.Equal(t, http.StatusUnprocessableEntity, status, "url %q", bad)
		require.Equal(t, "invalid webhook URL", body["error"])
	}
}

func TestWebhookVerify(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.registerUser(t, "alice@example.com")
	hook := "https://hooks.example.com/alice"

	status, body := f.do(t, http.MethodPost, "/config/webhook/verify", access,
		map[string]string{"url": hook})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, hook, body["webhook"])
	require.Equal(t, true, body["active"])
	require.Equal(t, []string{hook}, f.verifier.seen)

	f.verifier.active = false
	status, body = f.do(t, http.MethodPost, "/config/webhook/verify", access,
		map[string]string{"url": hook})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["active"])
}
