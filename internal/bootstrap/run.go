package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/schoolhub/portal/config"
	"github.com/schoolhub/portal/internal/adapters/gateway"
	"github.com/schoolhub/portal/internal/service"
)

// Portal is the assembled portal server.
type Portal struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	stores   *CredentialStores
	registry *service.SessionRegistry
	server   *http.Server
}

// NewPortal connects the credential store and builds the gateway client, registry and router.
func NewPortal(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Portal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stores, err := OpenCredentialStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	p, err := assemble(ctx, cfg, stores, logger)
	if err != nil {
		if cerr := stores.Close(); cerr != nil {
			logger.Error("close credential store failed", "error", cerr)
		}
		return nil, err
	}
	return p, nil
}

func assemble(ctx context.Context, cfg *config.AppConfig, stores *CredentialStores, logger *slog.Logger) (*Portal, error) {
	gw, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Gateway.BaseURL,
		Timeout: cfg.Gateway.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway client: %w", err)
	}

	registry := service.NewSessionRegistry(service.SessionRegistryOptions{
		Stores:      stores.Factory,
		Resolver:    gw,
		Gateway:     gw,
		Logger:      logger,
		IdleTTL:     cfg.Session.IdleTTL,
		BaseContext: context.WithoutCancel(ctx),
	})

	server, err := NewHTTPServer(HTTPServerConfig{
		Config:   cfg,
		Registry: registry,
		Fetcher:  gw,
		Stores:   stores,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &Portal{
		cfg:      cfg,
		logger:   logger,
		stores:   stores,
		registry: registry,
		server:   server,
	}, nil
}

// Handler exposes the assembled HTTP handler.
func (p *Portal) Handler() http.Handler { return p.server.Handler }

// Run serves HTTP and sweeps idle client contexts until ctx is done or either fails.
// The credential store connection is closed on return.
func (p *Portal) Run(ctx context.Context) error {
	defer func() {
		if err := p.stores.Close(); err != nil {
			p.logger.Error("close credential store failed", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ServeHTTP(gctx, p.server, p.logger)
	})
	g.Go(func() error {
		return p.registry.Run(gctx, p.cfg.Session.SweepInterval)
	})
	return g.Wait()
}
