package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/schoolhub/portal/config"
	"github.com/schoolhub/portal/internal/adapters/filestore"
	redisstore "github.com/schoolhub/portal/internal/adapters/redis"
	"github.com/schoolhub/portal/internal/service"
)

// CredentialStores is the per-client credential persistence of the portal server.
type CredentialStores struct {
	Factory service.StoreFactory
	// Ping reports whether the backing store is reachable.
	Ping  func(ctx context.Context) error
	close func() error
}

// Close releases the backing connection, if any.
func (s *CredentialStores) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// OpenCredentialStores builds the store factory selected by CREDENTIAL_STORE.
func OpenCredentialStores(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*CredentialStores, error) {
	switch cfg.Credentials.Backend {
	case config.CredentialBackendFile:
		dirs, err := filestore.NewDirStores(cfg.Credentials.Dir)
		if err != nil {
			return nil, fmt.Errorf("open file credential store: %w", err)
		}
		logger.Info("credential store ready", "backend", "file")
		return &CredentialStores{
			Factory: dirs.For,
			Ping:    func(context.Context) error { return nil },
		}, nil
	default:
		client, err := ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return redisStores(client, cfg.Credentials), nil
	}
}

func redisStores(client redis.UniversalClient, cfg config.CredentialStoreConfig) *CredentialStores {
	stores := redisstore.NewCredentialStores(client, cfg.KeyPrefix, cfg.TTL)
	return &CredentialStores{
		Factory: stores.For,
		Ping:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
		close:   client.Close,
	}
}
