// Package gateway wraps the two calls the client makes to the external
// impact-analysis service: a plain chat relay and prompt-to-impact
// analysis.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vanderheijden86/impactview/pkg/debug"
	"github.com/vanderheijden86/impactview/pkg/metrics"
	"github.com/vanderheijden86/impactview/pkg/model"
)

// Defaults mirror the endpoints the service is deployed on.
const (
	DefaultAnalyzeURL = "http://localhost:8081/promptAnalyzer/impactedModules"
	DefaultChatURL    = "http://localhost:8080/api/chat/impactanalyser"
	DefaultTimeout    = 2 * time.Minute
)

// ErrEmptyPrompt is returned when the text to send is blank.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Gateway is the typed interface to the analysis service.
type Gateway interface {
	// Chat relays text to the plain chat endpoint and returns the reply.
	Chat(ctx context.Context, text string) (string, error)
	// Analyze posts a prompt and returns the normalized impact response.
	Analyze(ctx context.Context, text string) (model.PromptResponse, error)
}

// APIError is returned for HTTP responses with status >= 400.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analysis service returned %d: %s", e.StatusCode, e.Message)
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.httpClient = c }
}

// WithSessionID sets the function that supplies the correlation id. An
// empty id omits the sessionId query parameter.
func WithSessionID(fn func() string) Option {
	return func(h *HTTPClient) { h.sessionID = fn }
}

// WithRateLimit caps outgoing requests. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *HTTPClient) {
		if rps <= 0 {
			h.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout sets the per-request timeout. It applies to a client passed
// with WithHTTPClient too, in either order, without modifying it.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) { h.timeout = d }
}

// HTTPClient implements Gateway over HTTP/JSON.
type HTTPClient struct {
	mu         sync.RWMutex
	analyzeURL string
	chatURL    string

	httpClient *http.Client
	timeout    time.Duration
	sessionID  func() string
	limiter    *rate.Limiter
}

// NewHTTPClient returns a client for the given endpoints. Empty URLs fall
// back to the defaults.
func NewHTTPClient(analyzeURL, chatURL string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		sessionID:  func() string { return "" },
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
	}
	h.SetEndpoints(analyzeURL, chatURL)
	for _, opt := range opts {
		opt(h)
	}
	if h.timeout > 0 && h.httpClient.Timeout != h.timeout {
		c := *h.httpClient
		c.Timeout = h.timeout
		h.httpClient = &c
	}
	return h
}

// SetEndpoints swaps the service URLs, e.g. after a config reload.
func (h *HTTPClient) SetEndpoints(analyzeURL, chatURL string) {
	if analyzeURL == "" {
		analyzeURL = DefaultAnalyzeURL
	}
	if chatURL == "" {
		chatURL = DefaultChatURL
	}
	h.mu.Lock()
	h.analyzeURL = analyzeURL
	h.chatURL = chatURL
	h.mu.Unlock()
}

// Endpoints returns the current analyze and chat URLs.
func (h *HTTPClient) Endpoints() (analyzeURL, chatURL string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.analyzeURL, h.chatURL
}

type promptRequest struct {
	Text string `json:"text"`
}

// Analyze implements Gateway.
func (h *HTTPClient) Analyze(ctx context.Context, text string) (model.PromptResponse, error) {
	defer metrics.Timer(metrics.GatewayAnalyze)()

	if strings.TrimSpace(text) == "" {
		return model.PromptResponse{}, ErrEmptyPrompt
	}
	analyzeURL, _ := h.Endpoints()
	target, err := withSession(analyzeURL, h.sessionID())
	if err != nil {
		return model.PromptResponse{}, err
	}

	body, err := h.post(ctx, target, promptRequest{Text: text})
	if err != nil {
		return model.PromptResponse{}, err
	}
	resp, err := model.DecodePromptResponse(body)
	if err != nil {
		return model.PromptResponse{}, err
	}
	debug.LogIf(resp.Legacy, "gateway: response used legacy graph shape")
	return resp, nil
}

// Chat implements Gateway.
func (h *HTTPClient) Chat(ctx context.Context, text string) (string, error) {
	defer metrics.Timer(metrics.GatewayChat)()

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyPrompt
	}
	_, chatURL := h.Endpoints()
	body, err := h.post(ctx, chatURL, promptRequest{Text: text})
	if err != nil {
		return "", err
	}
	return chatReply(body), nil
}

// withSession appends ?sessionId=<id> when id is non-empty.
func withSession(raw, id string) (string, error) {
	if id == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing analyze url: %w", err)
	}
	q := u.Query()
	q.Set("sessionId", id)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (h *HTTPClient) post(ctx context.Context, target string, payload any) ([]byte, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	debug.Log("gateway: POST %s -> %d in %v (request %s)", target, resp.StatusCode, time.Since(start), reqID)

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

// chatReply extracts the reply text from whatever the chat endpoint sent.
func chatReply(body []byte) string {
	var obj map[string]any
	if json.Unmarshal(body, &obj) == nil {
		for _, key := range []string{"reply", "text", "message", "result"} {
			if s, ok := obj[key].(string); ok && s != "" {
				return s
			}
		}
	}
	var s string
	if json.Unmarshal(body, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(body))
}
