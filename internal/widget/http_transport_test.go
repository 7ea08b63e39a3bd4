package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cryptosight-backend/internal/types"
)

func newCSRFServer(t *testing.T, chat http.HandlerFunc) (*httptest.Server, *int) {
	t.Helper()
	primes := 0
	mux := http.NewServeMux()
	mux.HandleFunc(primePath, func(w http.ResponseWriter, r *http.Request) {
		primes++
		http.SetCookie(w, &http.Cookie{Name: CSRFCookieName, Value: "secret-token", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(ChatPath, chat)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &primes
}

func TestHTTPTransportRoundTrip(t *testing.T) {
	var got types.ChatRequest
	var gotHeader, gotContentType string
	srv, primes := newCSRFServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotHeader = r.Header.Get(CSRFHeaderName)
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"<b>hi</b>","options":["Get Prediction","Check Price"],"context":{"awaiting":"initial_choice"}}`))
	})

	client, err := NewHTTPClient(5 * time.Second)
	require.NoError(t, err)
	creds, err := NewCookieCredentials(client, srv.URL)
	require.NoError(t, err)
	tr := NewHTTPTransport(client, srv.URL+"/")

	ctx := context.Background()
	token, err := creds.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "secret-token", token)

	resp, err := tr.Exchange(ctx, token, types.ChatRequest{Message: types.InitMessage})
	require.NoError(t, err)
	require.Equal(t, "secret-token", gotHeader)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, types.InitMessage, got.Message)
	require.NotNil(t, got.Context)
	require.Empty(t, got.Context)
	require.Equal(t, "<b>hi</b>", resp.Message)
	require.Equal(t, []string{"Get Prediction", "Check Price"}, resp.Options)
	require.Equal(t, types.Context{"awaiting": "initial_choice"}, resp.Context)

	// a second lookup is served from the jar
	_, err = creds.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, *primes)
}

func TestHTTPTransportRejectsNonSuccess(t *testing.T) {
	srv, _ := newCSRFServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"An error occurred: boom"}`))
	})
	client, err := NewHTTPClient(5 * time.Second)
	require.NoError(t, err)

	_, err = NewHTTPTransport(client, srv.URL).Exchange(context.Background(), "", types.ChatRequest{Message: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestHTTPTransportRejectsMalformedBody(t *testing.T) {
	srv, _ := newCSRFServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	})
	client, err := NewHTTPClient(5 * time.Second)
	require.NoError(t, err)

	_, err = NewHTTPTransport(client, srv.URL).Exchange(context.Background(), "", types.ChatRequest{Message: "x"})
	require.Error(t, err)
}

func TestCookieCredentialsWithoutCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(primePath, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewHTTPClient(5 * time.Second)
	require.NoError(t, err)
	creds, err := NewCookieCredentials(client, srv.URL)
	require.NoError(t, err)

	token, err := creds.Token(context.Background())
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestCookieCredentialsRequiresJar(t *testing.T) {
	_, err := NewCookieCredentials(&http.Client{}, "http://localhost:8080")
	require.Error(t, err)
}

func TestControllerOverHTTP(t *testing.T) {
	var contexts []types.Context
	srv, _ := newCSRFServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(CSRFHeaderName) != "secret-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var req types.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		contexts = append(contexts, req.Context)
		resp := types.ChatResponse{Message: "echo " + req.Message, Context: types.Context{"turn": float64(len(contexts))}}
		_ = json.NewEncoder(w).Encode(resp)
	})

	client, err := NewHTTPClient(5 * time.Second)
	require.NoError(t, err)
	creds, err := NewCookieCredentials(client, srv.URL)
	require.NoError(t, err)
	view := &recordingView{}
	c := New(view, NewHTTPTransport(client, srv.URL), creds)

	ctx := context.Background()
	require.NoError(t, c.Open(ctx))
	require.NoError(t, c.SubmitFreeText(ctx, "hello"))

	require.Equal(t, []types.Context{{}, {"turn": float64(1)}}, contexts)
	require.Equal(t, []string{"echo init", "echo hello"}, view.bots)
	require.Equal(t, types.Context{"turn": float64(2)}, c.Context())
}
