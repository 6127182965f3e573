package core

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFlowClient returns a client that keeps cookies and does not follow redirects.
func newFlowClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func doFlow(t *testing.T, client *http.Client, method, target, body string) (*http.Response, string) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, target, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func loginLocation(base, next string) string {
	return base + "/account/login?next=" + url.QueryEscape(next)
}

func TestAuthFlow_Scenario(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, testConfig(), NewMemoryTokenManager()))
	defer srv.Close()
	client := newFlowClient(t)

	resp, _ := doFlow(t, client, http.MethodGet, srv.URL+"/hello", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, loginLocation(srv.URL, srv.URL+"/hello"), resp.Header.Get("Location"))
	assert.Contains(t, resp.Header.Get("Location"), "next=http%3A%2F%2F127.0.0.1%3A")

	resp, body := doFlow(t, client, http.MethodPost, srv.URL+"/account/login", `{"username":"doej","password":"password"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.NotEmpty(t, resp.Header.Get("Set-Cookie"))
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "authgate_session" {
			session = c
		}
	}
	require.NotNil(t, session)

	resp, body = doFlow(t, client, http.MethodGet, srv.URL+"/download", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "It Worked!", body)

	resp, _ = doFlow(t, client, http.MethodGet, srv.URL+"/account/logout", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, loginLocation(srv.URL, srv.URL), resp.Header.Get("Location"))

	resp, _ = doFlow(t, client, http.MethodGet, srv.URL+"/hello", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, loginLocation(srv.URL, srv.URL+"/hello"), resp.Header.Get("Location"))

	// Replaying the old cookie does not authenticate either.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/download", nil)
	require.NoError(t, err)
	req.AddCookie(session)
	replay, err := (&http.Client{CheckRedirect: client.CheckRedirect}).Do(req)
	require.NoError(t, err)
	replay.Body.Close()
	assert.Equal(t, http.StatusFound, replay.StatusCode)
	assert.Equal(t, loginLocation(srv.URL, srv.URL+"/download"), replay.Header.Get("Location"))
}

func TestAuthFilter_NextRoundTripsQuery(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, testConfig(), NewMemoryTokenManager()))
	defer srv.Close()

	original := srv.URL + "/download?x=1&y=a%20b&z=%2Fslash"
	resp, _ := doFlow(t, newFlowClient(t), http.MethodGet, original, "")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/account/login", loc.Path)
	assert.Equal(t, original, loc.Query().Get("next"))
}

func TestAuthFilter_MethodDoesNotMatter(t *testing.T) {
	r := newTestRouter(t, testConfig(), NewMemoryTokenManager())

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, "/download", nil))
		assert.Equal(t, http.StatusFound, rec.Code, method)
		assert.Equal(t, loginLocation("http://example.com", "http://example.com/download"), rec.Header().Get("Location"))
	}
}

func TestAuthFilter_OpenPathsSkipLookup(t *testing.T) {
	tokens := newStubTokenManager()
	cfg := testConfig()
	r := newTestRouter(t, cfg, tokens)

	garbage := &http.Cookie{Name: cfg.CookieName, Value: "not-a-session"}
	valid := sessionCookie(t, cfg, "unknown-token")

	for _, path := range []string{"/open", "/open/nested", "/open?x=1", "/healthz"} {
		for _, c := range []*http.Cookie{nil, garbage, valid} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if c != nil {
				req.AddCookie(c)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	}
	assert.Equal(t, int64(0), tokens.lookups.Load())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openish", nil))
	assert.Equal(t, http.StatusFound, rec.Code, "/openish is not under /open")
}

func TestAuthFilter_UncleanPathsAreProtected(t *testing.T) {
	r := newTestRouter(t, testConfig(), NewMemoryTokenManager())
	var served atomic.Int64
	r.GET("/files/*name", func(c *gin.Context) {
		served.Add(1)
		c.String(http.StatusOK, "secret:"+c.Param("name"))
	})

	for _, target := range []string{
		"/files/a",
		"/files/../open",
		"/files/%2e%2e/open",
		"/files/x/../../open/y",
		"/files/./open",
		"//open",
		"//open/nested",
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusFound, rec.Code, target)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "http://example.com/account/login?next="), target)
		assert.NotContains(t, rec.Body.String(), "secret", target)
	}
	assert.Equal(t, int64(0), served.Load())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "clean open path still passes")
}

func TestAuthFilter_InvalidOrUnknownCookieRedirects(t *testing.T) {
	cfg := testConfig()
	r := newTestRouter(t, cfg, NewMemoryTokenManager())

	for _, c := range []*http.Cookie{
		{Name: cfg.CookieName, Value: "garbage"},
		sessionCookie(t, cfg, "never-issued"),
	} {
		req := httptest.NewRequest(http.MethodGet, "/download", nil)
		req.AddCookie(c)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code)
	}
}

func TestAuthFilter_AttachesPrincipal(t *testing.T) {
	cfg := testConfig()
	tokens := NewMemoryTokenManager()
	tok := NewToken(testUsername, time.Now(), time.Hour)
	require.NoError(t, tokens.Add(context.Background(), tok))
	r := newTestRouter(t, cfg, tokens)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(sessionCookie(t, cfg, tok.ID))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUsername, rec.Body.String())
}

func TestAuthFilter_ExpiredTokenRedirects(t *testing.T) {
	now := time.Now()
	withClock(t, &now)
	cfg := testConfig()
	tokens := NewMemoryTokenManager()
	tok := NewToken(testUsername, now, time.Minute)
	require.NoError(t, tokens.Add(context.Background(), tok))
	r := newTestRouter(t, cfg, tokens)

	now = now.Add(time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/download", nil)
	req.AddCookie(sessionCookie(t, cfg, tok.ID))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestAuthFilter_StoreUnavailableIsServerError(t *testing.T) {
	cfg := testConfig()
	tokens := newStubTokenManager()
	tokens.failing.Store(true)
	r := newTestRouter(t, cfg, tokens)

	req := httptest.NewRequest(http.MethodGet, "/download", nil)
	req.AddCookie(sessionCookie(t, cfg, "some-token"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Contains(t, rec.Body.String(), "TOKEN_STORE_UNAVAILABLE")
}

func TestAuthFilter_ForwardedProtoAndContextPath(t *testing.T) {
	cfg := testConfig()
	cfg.ContextPath = "/app"
	r := newTestRouter(t, cfg, NewMemoryTokenManager())

	req := httptest.NewRequest(http.MethodGet, "/download?a=1", nil)
	req.Host = "gate.example.org:8443"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t,
		"https://gate.example.org:8443/app/account/login?next="+url.QueryEscape("https://gate.example.org:8443/download?a=1"),
		rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
