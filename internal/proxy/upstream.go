package proxy

import (
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// AuthScheme selects how the upstream credential is presented.
type AuthScheme string

const (
	// AuthSchemeAPIKey sends the key in X-Api-Key (Anthropic native).
	AuthSchemeAPIKey AuthScheme = "x-api-key"
	// AuthSchemeBearer sends the key as an Authorization bearer token (OpenAI-compatible gateways).
	AuthSchemeBearer AuthScheme = "bearer"
)

const defaultAnthropicVersion = "2023-06-01"

// allowedHeaders defines the HTTP headers permitted to pass through to the upstream API.
var allowedHeaders = map[string]bool{
	"Content-Type":    true,
	"Content-Length":  true,
	"Accept":          true,
	"Accept-Encoding": true,
	"Authorization":   true,
	"X-Api-Key":       true,

	"Anthropic-Version": true,
	"Anthropic-Beta":    true,

	// W3C Trace Context for distributed tracing correlation.
	"Traceparent": true,
	"Tracestate":  true,
}

// credentialHeaders are dropped from client requests when the proxy supplies its own key.
var credentialHeaders = []string{"Authorization", "X-Api-Key"}

// UpstreamTransport is an http.RoundTripper that filters client headers and
// attaches upstream credentials.
type UpstreamTransport struct {
	Base http.RoundTripper

	// Source supplies the upstream key. When nil, client credentials pass through.
	Source oauth2.TokenSource
	Scheme AuthScheme
}

// Compile-time check that UpstreamTransport implements http.RoundTripper.
var _ http.RoundTripper = (*UpstreamTransport)(nil)

// RoundTrip implements http.RoundTripper interface.
func (t *UpstreamTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	newReq := req.Clone(req.Context())

	// Filter headers so client-specific headers (User-Agent, cookies, custom headers)
	// don't leak upstream
	originalHeaders := newReq.Header
	newReq.Header = make(http.Header)
	for key, values := range originalHeaders {
		if allowedHeaders[key] {
			newReq.Header[key] = values
		}
	}

	if newReq.Header.Get("Anthropic-Version") == "" {
		newReq.Header.Set("Anthropic-Version", defaultAnthropicVersion)
	}

	if t.Source == nil {
		return base.RoundTrip(newReq)
	}

	for _, h := range credentialHeaders {
		newReq.Header.Del(h)
	}

	switch t.Scheme {
	case AuthSchemeBearer:
		// oauth2.Transport clones again and sets "Authorization: Bearer <key>"
		return (&oauth2.Transport{Source: t.Source, Base: base}).RoundTrip(newReq)
	case AuthSchemeAPIKey, "":
		token, err := t.Source.Token()
		if err != nil {
			closeBody(req)
			return nil, fmt.Errorf("upstream credential: %w", err)
		}
		newReq.Header.Set("X-Api-Key", token.AccessToken)
		return base.RoundTrip(newReq)
	default:
		closeBody(req)
		return nil, fmt.Errorf("unsupported auth scheme: %s", t.Scheme)
	}
}

// closeBody honors the RoundTripper contract of closing the body on error.
func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
