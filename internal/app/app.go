package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/thinkgate/internal/hook"
	"github.com/florianilch/thinkgate/internal/proxy"
	"github.com/florianilch/thinkgate/internal/thinking"
)

// ThinkingHookName is the name the thinking injector is registered under.
const ThinkingHookName = "thinking"

// App orchestrates the lifecycle of the proxy server and related services.
type App struct {
	cfg   *Config
	proxy *proxy.Proxy
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	chain, err := NewChain(cfg)
	if err != nil {
		return nil, err
	}

	opts := []proxy.Option{
		proxy.WithBaseURL(cfg.Upstream.BaseURL),
		proxy.WithMaxRequestBytes(cfg.Server.MaxRequestBytes),
	}

	// I/O deferred to first Token() call
	store, err := cfg.Upstream.Auth.NewKeyStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create key store: %w", err)
	}
	if store != nil {
		tokenSource, err := NewKeyTokenSource(store)
		if err != nil {
			return nil, fmt.Errorf("failed to create token source: %w", err)
		}
		opts = append(opts, proxy.WithCredentials(tokenSource, cfg.Upstream.Auth.Scheme))
	}

	cache := hook.NewMemoryCache(cfg.Cache.DefaultTTL, cfg.Cache.CleanupInterval)

	proxyServer, err := proxy.New(chain, cache, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{
		cfg:   cfg,
		proxy: proxyServer,
	}, nil
}

// NewChain builds the pre-call hook chain from configuration.
func NewChain(cfg *Config) (*hook.Chain, error) {
	injector, err := thinking.New(cfg.Thinking)
	if err != nil {
		return nil, fmt.Errorf("failed to create thinking injector: %w", err)
	}

	chain := hook.NewChain()
	chain.Register(ThinkingHookName, injector)

	injectorCfg := injector.Config()
	slog.Debug("registered pre-call hook",
		"hook", ThinkingHookName,
		"disabled", injectorCfg.Disabled,
		"policy", string(injectorCfg.Policy),
	)

	return chain, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Address()
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting proxy server", "address", address, "upstream", a.cfg.Upstream.BaseURL)
	proxyErrCh, err := a.proxy.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
