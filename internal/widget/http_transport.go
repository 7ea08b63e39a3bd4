package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"cryptosight-backend/internal/types"
)

const (
	// ChatPath is the chat endpoint relative to the server base URL.
	ChatPath = "/chat/"
	// CSRFCookieName and CSRFHeaderName follow the double-submit convention
	// the server checks.
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"

	primePath = "/api/health"
)

// HTTPTransport posts chat turns as JSON to <base>/chat/.
type HTTPTransport struct {
	httpClient *http.Client
	endpoint   string
}

func NewHTTPTransport(httpClient *http.Client, baseURL string) *HTTPTransport {
	return &HTTPTransport{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(baseURL, "/") + ChatPath,
	}
}

func (t *HTTPTransport) Exchange(ctx context.Context, csrfToken string, req types.ChatRequest) (*types.ChatResponse, error) {
	if req.Context == nil {
		req.Context = types.Context{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode chat request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if csrfToken != "" {
		httpReq.Header.Set(CSRFHeaderName, csrfToken)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "post chat request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("chat endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out types.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode chat response")
	}
	return &out, nil
}

// CookieCredentials reads the CSRF token from the cookie jar the transport's
// HTTP client shares. When the cookie is missing it primes the jar once with a
// GET against the server, which issues the cookie on every response.
type CookieCredentials struct {
	httpClient *http.Client
	baseURL    *url.URL

	mu     sync.Mutex
	primed bool
}

func NewCookieCredentials(httpClient *http.Client, baseURL string) (*CookieCredentials, error) {
	if httpClient.Jar == nil {
		return nil, errors.New("http client has no cookie jar")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	return &CookieCredentials{httpClient: httpClient, baseURL: u}, nil
}

func (c *CookieCredentials) Token(ctx context.Context) (string, error) {
	if tok := c.fromJar(); tok != "" {
		return tok, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.primed {
		if err := c.prime(ctx); err != nil {
			return "", err
		}
		c.primed = true
	}
	// An absent cookie is not an error: servers that do not enforce CSRF
	// never issue one.
	return c.fromJar(), nil
}

func (c *CookieCredentials) fromJar() string {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == CSRFCookieName {
			if v, err := url.QueryUnescape(ck.Value); err == nil {
				return v
			}
			return ck.Value
		}
	}
	return ""
}

func (c *CookieCredentials) prime(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+primePath, nil)
	if err != nil {
		return errors.Wrap(err, "build csrf prime request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "prime csrf cookie")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// NewHTTPClient returns an HTTP client with a cookie jar so the session and
// CSRF cookies issued by the server are replayed.
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create cookie jar")
	}
	return &http.Client{Jar: jar, Timeout: timeout}, nil
}
