package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/maneesh/discloud/internal/config"
	"github.com/maneesh/discloud/internal/logging"
	"github.com/maneesh/discloud/internal/storage"
	"github.com/maneesh/discloud/internal/transport"
)

// fetchTimeout bounds one attachment download.
const fetchTimeout = 5 * time.Minute

// openStore connects the configured catalog backend.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.CatalogBackend {
	case config.BackendMySQL:
		logging.Info("Connecting to TiDB...")
		return storage.NewTiDBClient(cfg.GetDSN())
	case config.BackendRedis:
		logging.Info("Connecting to Redis...")
		return storage.NewRedisClient(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	case config.BackendMemory:
		logging.Warnf("Using in-memory catalog; contents are lost on restart")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown catalog backend %q", cfg.CatalogBackend)
	}
}

// openTransport connects the configured attachment transport and the
// fetcher able to read its URLs.
func openTransport(cfg *config.Config) (transport.Transport, transport.Fetcher, error) {
	httpFetcher := transport.NewHTTPFetcher(&http.Client{Timeout: fetchTimeout})

	switch cfg.TransportBackend {
	case config.BackendDiscord:
		logging.Info("Connecting to Discord...")
		t, err := transport.NewDiscordTransport(cfg.DiscordToken)
		if err != nil {
			return nil, nil, err
		}
		return t, httpFetcher, nil
	case config.BackendMinIO:
		logging.Info("Connecting to MinIO...")
		t, err := transport.NewMinioClient(
			cfg.MinIOEndpoint,
			cfg.MinIOAccessKey,
			cfg.MinIOSecretKey,
			cfg.MinIOBucketName,
			cfg.MinIOUseSSL,
			cfg.AttachmentURLTTL,
		)
		if err != nil {
			return nil, nil, err
		}
		return t, httpFetcher, nil
	case config.BackendMemory:
		logging.Warnf("Using in-memory transport; attachments are lost on restart")
		t := transport.NewMemoryTransport()
		return t, t, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport backend %q", cfg.TransportBackend)
	}
}
