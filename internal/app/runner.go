// internal/app/runner.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/api"
	"github.com/rovshanmuradov/token-scanner/internal/cache"
	"github.com/rovshanmuradov/token-scanner/internal/config"
	"github.com/rovshanmuradov/token-scanner/internal/fetcher"
	"github.com/rovshanmuradov/token-scanner/internal/provider"
	"github.com/rovshanmuradov/token-scanner/internal/ratelimit"
	"github.com/rovshanmuradov/token-scanner/internal/scanner"
	"github.com/rovshanmuradov/token-scanner/internal/session"
	"github.com/rovshanmuradov/token-scanner/internal/storage"
	"github.com/rovshanmuradov/token-scanner/internal/storage/gormstore"
	"github.com/rovshanmuradov/token-scanner/internal/throttle"
	"github.com/rovshanmuradov/token-scanner/internal/utils/metrics"
)

const shutdownTimeout = 10 * time.Second

// Runner is the composition root: it owns every long-lived component.
type Runner struct {
	logger       *zap.Logger
	config       *config.Config
	metrics      *metrics.Collector
	storage      storage.Storage
	service      *scanner.Service
	entitlements scanner.Entitlements
}

// NewRunner собирает все компоненты по конфигурации
func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	collector := metrics.NewCollector()
	gates := ratelimit.NewManager(cfg.Gates, collector)

	options := func(name, baseURL string, timeout time.Duration) provider.Options {
		guard := provider.DefaultGuardConfig()
		guard.Timeout = timeout
		guard.MaxTries = cfg.HTTP.MaxTries
		guard.BreakerFailures = cfg.HTTP.BreakerFailures
		guard.BreakerOpenFor = cfg.HTTP.BreakerOpenFor
		return provider.Options{
			BaseURL:  baseURL,
			Gate:     gates.Gate(name),
			Guard:    guard,
			Recorder: collector,
			Logger:   logger,
		}
	}

	birdeye := provider.NewBirdeye(cfg.Birdeye.APIKey, options("birdeye", cfg.Birdeye.BaseURL, cfg.HTTP.Timeout))
	dex := provider.NewDexScreener(options("dexscreener", cfg.DexScreener.BaseURL, cfg.HTTP.Timeout))
	gecko := provider.NewGeckoTerminal(options("geckoterminal", cfg.GeckoTerminal.BaseURL, cfg.HTTP.Timeout))
	jupiter := provider.NewJupiter(options("jupiter", cfg.Jupiter.BaseURL, cfg.HTTP.LightTimeout))

	rpcGuard := options("rpc", "", cfg.HTTP.LightTimeout).Guard
	onchain := provider.NewOnChainURL(cfg.RPCURL, gates.Gate("rpc"), rpcGuard, collector, logger)

	discovery := fetcher.NewDiscovery([]fetcher.Strategy{
		birdeye.TokenListStrategy(),
		birdeye.NewListingStrategy(),
		dex.SearchStrategy(),
	}, cfg.Discovery.RawLimit, collector, logger)

	detail := fetcher.NewDetail(fetcher.DetailSources{
		Overview:  birdeye,
		Fallback:  gecko,
		Security:  onchain,
		Exchanges: dex,
		Price:     jupiter,
	}, cfg.Detail.MaxInFlight, collector, logger)

	discoveryCache, err := newCache(cfg, collector, logger)
	if err != nil {
		return nil, err
	}

	store, err := gormstore.NewStorage(cfg.Throttle.Driver, cfg.Throttle.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open throttle storage: %w", err)
	}
	if err := store.RunMigrations(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate throttle storage: %w", err)
	}

	service := scanner.NewService(
		discovery,
		detail,
		discoveryCache,
		session.NewStore(cfg.Session.TTL, collector, logger),
		throttle.NewStore(store, collector, logger),
		scanner.Options{
			Limit:              cfg.Discovery.Limit,
			Cooldown:           cfg.Throttle.Cooldown,
			PrivilegedCooldown: cfg.Throttle.PrivilegedCooldown,
		},
		logger,
	)

	return &Runner{
		logger:       logger.Named("runner"),
		config:       cfg,
		metrics:      collector,
		storage:      store,
		service:      service,
		entitlements: scanner.NewStaticEntitlements(cfg.PrivilegedUsers),
	}, nil
}

func newCache(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (cache.Cache, error) {
	if cfg.Cache.Backend != "redis" {
		return cache.NewMemory(cfg.Cache.TTL, collector, logger), nil
	}

	rc, err := cache.NewRedisCacheURL(cfg.Cache.RedisURL, cfg.Cache.TTL, collector, logger)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		// кэш не обязателен: работаем без него, промахи обработает Get
		logger.Warn("redis unreachable, continuing", zap.Error(err))
	}
	return rc, nil
}

// Service returns the wired scan service.
func (r *Runner) Service() *scanner.Service { return r.service }

// IsPrivileged reports whether userID gets the shorter cooldown.
func (r *Runner) IsPrivileged(userID string) bool { return r.entitlements.IsPrivileged(userID) }

// Serve runs the HTTP API until ctx is cancelled or a signal arrives.
func (r *Runner) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handlers := api.NewHandlers(r.service, r.entitlements, r.logger)
	server := api.NewServer(api.DefaultServerConfig(r.config.ListenAddr), handlers, r.metrics.Handler(), r.logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		r.logger.Info("Signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Close releases storage handles.
func (r *Runner) Close() error {
	return r.storage.Close()
}
