package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/thinkgate/internal/hook"
	"github.com/florianilch/thinkgate/internal/observability/middleware"
)

// Default option values
const (
	DefaultBaseURL         = "https://api.anthropic.com/v1"
	DefaultMaxRequestBytes = 32 << 20
)

// Option configures a Proxy.
type Option func(*config)

type config struct {
	baseURL         string
	maxRequestBytes int64
	tokenSource     oauth2.TokenSource
	scheme          AuthScheme
	transport       http.RoundTripper
}

// WithBaseURL sets the upstream API base URL, including its version path (e.g. /v1).
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithMaxRequestBytes limits the size of request bodies the proxy buffers.
func WithMaxRequestBytes(n int64) Option {
	return func(c *config) {
		c.maxRequestBytes = n
	}
}

// WithCredentials makes the proxy authenticate upstream with its own key instead
// of forwarding the client's credentials.
func WithCredentials(ts oauth2.TokenSource, scheme AuthScheme) Option {
	return func(c *config) {
		c.tokenSource = ts
		c.scheme = scheme
	}
}

// WithTransport sets the base transport for upstream requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *config) {
		c.transport = rt
	}
}

// Proxy represents the forward proxy server
type Proxy struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// New creates a forward proxy that runs chain over every completion request
// before forwarding it upstream. cache is handed to every hook invocation.
func New(chain *hook.Chain, cache hook.Cache, opts ...Option) (*Proxy, error) {
	cfg := &config{
		baseURL:         DefaultBaseURL,
		maxRequestBytes: DefaultMaxRequestBytes,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if chain == nil {
		return nil, errors.New("missing hook chain")
	}
	if cfg.maxRequestBytes <= 0 {
		return nil, fmt.Errorf("max request bytes must be positive, got %d", cfg.maxRequestBytes)
	}

	upstream, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL: %q must be absolute", cfg.baseURL)
	}
	basePath := strings.TrimSuffix(upstream.Path, "/")

	transport := &UpstreamTransport{
		Base:   cfg.transport,
		Source: cfg.tokenSource,
		Scheme: cfg.scheme,
	}

	reverseProxyHandler := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = upstream.Scheme
			pr.Out.URL.Host = upstream.Host
			pr.Out.Host = upstream.Host
		},
		// FlushInterval: -1 flushes only when the backend flushes, so SSE streams
		// reach the client as soon as the upstream API sends them.
		FlushInterval: -1,
		Transport:     transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.ErrorContext(r.Context(), "upstream request failed", "error", err)
			writeJSONError(r.Context(), w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		},
	}

	logger := slog.Default()

	mux := http.NewServeMux()

	routes := []struct {
		path     string
		callType hook.CallType
	}{
		{basePath + "/messages", hook.CallTypeAnthropicMessages},
		{basePath + "/chat/completions", hook.CallTypeCompletion},
	}
	for _, route := range routes {
		mux.Handle("POST "+route.path, applyMiddlewares(reverseProxyHandler,
			middleware.Logging(logger),
			Recovery,
			PreCall(chain, cache, route.callType, cfg.maxRequestBytes),
		))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, map[string]string{"status": "ok"}, http.StatusOK)
	})

	return &Proxy{mux: mux}, nil
}

// ServeHTTP implements http.Handler interface
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	// Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.server = &http.Server{
		Handler:      p,
		ReadTimeout:  30 * time.Second, // Inbound: Read entire client request (DoS protection against slow clients)
		WriteTimeout: 15 * time.Minute, // Inbound: extended thinking responses stream for minutes
		IdleTimeout:  90 * time.Second, // Inbound: Keep-alive wait for next request from client
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := p.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	if err := p.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
