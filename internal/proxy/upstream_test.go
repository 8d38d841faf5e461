package proxy

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// recordingServer captures the headers of the last request it received.
func recordingServer(t *testing.T) (*httptest.Server, *http.Header) {
	t.Helper()
	var received http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Clone()
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"test"}`))
	}))
	t.Cleanup(server.Close)
	return server, &received
}

func doPost(t *testing.T, transport http.RoundTripper, url string, headers map[string]string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(`{"model":"claude-3"}`))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return (&http.Client{Transport: transport}).Do(req)
}

func TestUpstreamTransportHeaderFiltering(t *testing.T) {
	server, received := recordingServer(t)

	transport := &UpstreamTransport{Base: http.DefaultTransport}
	resp, err := doPost(t, transport, server.URL, map[string]string{
		"Content-Type":   "application/json",
		"X-Api-Key":      "sk-client",
		"Anthropic-Beta": "interleaved-thinking-2025-05-14",
		"User-Agent":     "custom-agent/1.0",
		"Cookie":         "session=abc",
		"X-Custom":       "value",
		"Traceparent":    "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	for _, h := range []string{"Cookie", "X-Custom"} {
		if received.Get(h) != "" {
			t.Errorf("header %s should be filtered, got %q", h, received.Get(h))
		}
	}
	if ua := received.Get("User-Agent"); strings.Contains(ua, "custom-agent") {
		t.Errorf("client User-Agent should be filtered, got %q", ua)
	}

	expected := map[string]string{
		"Content-Type":      "application/json",
		"X-Api-Key":         "sk-client",
		"Anthropic-Beta":    "interleaved-thinking-2025-05-14",
		"Anthropic-Version": defaultAnthropicVersion,
		"Traceparent":       "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
	}
	for h, want := range expected {
		if got := received.Get(h); got != want {
			t.Errorf("header %s: got %q, want %q", h, got, want)
		}
	}
}

func TestUpstreamTransportKeepsClientAnthropicVersion(t *testing.T) {
	server, received := recordingServer(t)

	resp, err := doPost(t, &UpstreamTransport{}, server.URL, map[string]string{"Anthropic-Version": "2024-01-01"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if got := received.Get("Anthropic-Version"); got != "2024-01-01" {
		t.Errorf("got %q, want client version", got)
	}
}

func TestUpstreamTransportCredentials(t *testing.T) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "sk-proxy", TokenType: "Bearer"})

	tests := []struct {
		name          string
		scheme        AuthScheme
		wantAPIKey    string
		wantAuthorize string
	}{
		{name: "x-api-key", scheme: AuthSchemeAPIKey, wantAPIKey: "sk-proxy"},
		{name: "default scheme is x-api-key", scheme: "", wantAPIKey: "sk-proxy"},
		{name: "bearer", scheme: AuthSchemeBearer, wantAuthorize: "Bearer sk-proxy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, received := recordingServer(t)

			transport := &UpstreamTransport{Source: source, Scheme: tt.scheme}
			resp, err := doPost(t, transport, server.URL, map[string]string{
				"X-Api-Key":     "sk-client",
				"Authorization": "Bearer sk-client",
			})
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			_ = resp.Body.Close()

			if got := received.Get("X-Api-Key"); got != tt.wantAPIKey {
				t.Errorf("X-Api-Key: got %q, want %q", got, tt.wantAPIKey)
			}
			if got := received.Get("Authorization"); got != tt.wantAuthorize {
				t.Errorf("Authorization: got %q, want %q", got, tt.wantAuthorize)
			}
		})
	}
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("keyring locked")
}

func TestUpstreamTransportCredentialError(t *testing.T) {
	server, _ := recordingServer(t)

	transport := &UpstreamTransport{Source: failingTokenSource{}, Scheme: AuthSchemeAPIKey}
	_, err := doPost(t, transport, server.URL, nil)
	if err == nil || !strings.Contains(err.Error(), "keyring locked") {
		t.Errorf("expected credential error, got %v", err)
	}
}

func TestUpstreamTransportUnknownScheme(t *testing.T) {
	server, _ := recordingServer(t)

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "sk-proxy"})
	_, err := doPost(t, &UpstreamTransport{Source: source, Scheme: "basic"}, server.URL, nil)
	if err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
