package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures the incoming request and returns a canned response.
type testHandler struct {
	method      string
	path        string
	query       string
	body        string
	contentType string
	requestID   string
	calls       atomic.Int32

	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls.Add(1)
	h.method = r.Method
	h.path = r.URL.Path
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.requestID = r.Header.Get("X-Request-Id")
	data, _ := io.ReadAll(r.Body)
	h.body = string(data)

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	}
	_, _ = w.Write([]byte(h.responseBody))
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithRateLimit(0, 0)}, opts...)
	return NewHTTPClient(srv.URL+"/promptAnalyzer/impactedModules", srv.URL+"/api/chat/impactanalyser", opts...)
}

func TestAnalyze_PostsTextWithSessionID(t *testing.T) {
	h := &testHandler{responseBody: `{"graphs":[],"testPlan":{"title":"t","testPlan":"plan"}}`}
	c := newTestClient(t, h, WithSessionID(func() string { return "131242" }))

	resp, err := c.Analyze(context.Background(), "test")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, h.method)
	assert.Equal(t, "/promptAnalyzer/impactedModules", h.path)
	assert.Equal(t, "sessionId=131242", h.query)
	assert.JSONEq(t, `{"text":"test"}`, h.body)
	assert.Equal(t, "application/json", h.contentType)
	assert.NotEmpty(t, h.requestID)

	assert.Equal(t, "plan", resp.TestPlan.TestPlan)
	assert.Equal(t, "t", resp.TestPlan.Title)
	assert.Empty(t, resp.Graphs)
}

func TestAnalyze_OmitsSessionWhenUnavailable(t *testing.T) {
	h := &testHandler{responseBody: `{}`}
	c := newTestClient(t, h)

	_, err := c.Analyze(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, h.query)
}

func TestAnalyze_LegacyGraphData(t *testing.T) {
	h := &testHandler{responseBody: `{"graphData":{"nodes":[{"id":"A"},{"id":"B"}],"links":[{"source":"A","target":"B"}]},"testPlan":"p"}`}
	c := newTestClient(t, h)

	resp, err := c.Analyze(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, resp.Graphs, 1)
	assert.True(t, resp.Legacy)
	assert.Len(t, resp.Graphs[0].Nodes, 2)
}

func TestAnalyze_HTTPError(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNotFound, responseBody: `{"error":"No matching node found for: Owner"}`}
	c := newTestClient(t, h)

	_, err := c.Analyze(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "No matching node found for: Owner", apiErr.Message)
}

func TestAnalyze_PlainTextError(t *testing.T) {
	h := &testHandler{statusCode: http.StatusInternalServerError, responseBody: "boom\n"}
	c := newTestClient(t, h)

	_, err := c.Analyze(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "boom", apiErr.Message)
}

func TestAnalyze_EmptyPromptSkipsNetwork(t *testing.T) {
	h := &testHandler{}
	c := newTestClient(t, h)

	_, err := c.Analyze(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Zero(t, h.calls.Load())
}

func TestAnalyze_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := NewHTTPClient(srv.URL, srv.URL, WithRateLimit(0, 0))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Analyze(ctx, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChat_ReplyShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"reply field", `{"reply":"hello"}`, "hello"},
		{"result field", `{"result":"ok"}`, "ok"},
		{"json string", `"plain"`, "plain"},
		{"raw text", `not json`, "not json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{responseBody: tc.body}
			c := newTestClient(t, h)

			got, err := c.Chat(context.Background(), "hello")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, "/api/chat/impactanalyser", h.path)
			assert.JSONEq(t, `{"text":"hello"}`, h.body)
		})
	}
}

func TestSetEndpoints_DefaultsWhenEmpty(t *testing.T) {
	c := NewHTTPClient("", "")
	a, ch := c.Endpoints()
	assert.Equal(t, DefaultAnalyzeURL, a)
	assert.Equal(t, DefaultChatURL, ch)

	c.SetEndpoints("http://example.test/a", "http://example.test/c")
	a, ch = c.Endpoints()
	assert.Equal(t, "http://example.test/a", a)
	assert.Equal(t, "http://example.test/c", ch)
}

func TestWithSession_PreservesExistingQuery(t *testing.T) {
	got, err := withSession("http://h/p?x=1", "win-1")
	require.NoError(t, err)
	assert.Equal(t, "http://h/p?sessionId=win-1&x=1", got)
}

func TestWithTimeout_AppliesInAnyOrderWithoutTouchingCallerClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	before := NewHTTPClient("", "", WithTimeout(5*time.Second), WithHTTPClient(shared))
	after := NewHTTPClient("", "", WithHTTPClient(shared), WithTimeout(7*time.Second))

	assert.Equal(t, 5*time.Second, before.httpClient.Timeout)
	assert.Equal(t, 7*time.Second, after.httpClient.Timeout)
	assert.Equal(t, time.Minute, shared.Timeout, "caller's client must not be modified")

	plain := NewHTTPClient("", "", WithTimeout(3*time.Second))
	assert.Equal(t, 3*time.Second, plain.httpClient.Timeout)
	assert.Equal(t, DefaultTimeout, NewHTTPClient("", "").httpClient.Timeout)
}

func TestWithTimeout_BoundsSlowRequests(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c := newTestClient(t, slow, WithHTTPClient(&http.Client{}), WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.Analyze(context.Background(), "slow")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
