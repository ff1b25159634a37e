// Command server runs the Nostr auth middleware as a standalone HTTP
// service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	platformcmd "github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/platform/cmd"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/platform/config"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/httpapi"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/serverkey"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/storage"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/storage/memory"
	redisstore "github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/storage/redis"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/storage/sqlite"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/token"
)

type serverConfig struct {
	Port            int           `env:"NOSTR_AUTH_PORT" envDefault:"8090"`
	Storage         string        `env:"NOSTR_AUTH_STORAGE" envDefault:"memory"`
	SQLitePath      string        `env:"NOSTR_AUTH_SQLITE_PATH" envDefault:"nostr-auth.db"`
	RedisAddr       string        `env:"NOSTR_AUTH_REDIS_ADDR"`
	CleanupInterval time.Duration `env:"NOSTR_AUTH_CLEANUP_INTERVAL" envDefault:"1m"`

	Token   token.Config
	Service auth.Config
	Key     serverkey.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg serverConfig
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	port := fs.Int("port", 0, "HTTP listen port (overrides NOSTR_AUTH_PORT)")
	backend := fs.String("storage", "", "storage backend: memory, sqlite or redis (overrides NOSTR_AUTH_STORAGE)")
	if err := platformcmd.ParseConfigFromArgs(&cfg, fs, os.Args[1:]); err != nil {
		config.Exitf("parse config: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *backend != "" {
		cfg.Storage = *backend
	}

	if err := platformcmd.RunWithTelemetry(ctx, "nostr-auth", func(ctx context.Context) error {
		return run(ctx, cfg)
	}); err != nil {
		config.Exitf("server: %v", err)
	}
}

func run(ctx context.Context, cfg serverConfig) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens, err := token.NewIssuer(cfg.Token)
	if err != nil {
		return err
	}
	identity, err := serverkey.Load(cfg.Key)
	if err != nil {
		return fmt.Errorf("load server key: %w", err)
	}

	service, err := auth.NewService(store, tokens, identity, cfg.Service)
	if err != nil {
		return err
	}
	service.StartCleanup(ctx, cfg.CleanupInterval)

	mux := http.NewServeMux()
	httpapi.NewServer(service).RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("nostr-auth listening on %s (storage=%s, server pubkey=%s)",
			httpServer.Addr, cfg.Storage, identity.PublicKey())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg serverConfig) (storage.Store, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case "", "memory":
		return memory.NewStore(), func() {}, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case "redis":
		store, err := redisstore.Open(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis storage: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
