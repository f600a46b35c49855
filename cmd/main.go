package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/internal/badgerstore"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/profile"
	"github.com/cwrk-planet/chat-service/internal/realtime"
	"github.com/cwrk-planet/chat-service/internal/relay"
	"github.com/cwrk-planet/chat-service/internal/service"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	instanceID := uuid.NewString()
	lg := logger.Init(logger.Config{
		Env:        logger.ParseEnv(cfg.Logging.Env),
		Service:    cfg.Logging.Service,
		Version:    cfg.Logging.Version,
		InstanceID: instanceID,
		Backend:    logger.Backend(cfg.Logging.Backend),
		AddSource:  cfg.Logging.AddSource,
		Debug:      cfg.Logging.Debug,
	})
	lg.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version,
		"storage", cfg.Storage.Backend, "auth", cfg.Auth.Mode)

	ctx := context.Background()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// --- storage ---
	var (
		repo  service.MessageRepository
		ready func(ctx context.Context) error
		pg    *postgres.ProfileRepository
	)
	if cfg.Storage.Backend == config.StorageBackendPostgres || cfg.Profiles.Source == config.ProfileSourcePostgres {
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			ApplicationName: cfg.Logging.Service,
		})
		if err != nil {
			lg.Error("postgres", "err", err)
			os.Exit(1)
		}
		closers = append(closers, pool.Close)
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				lg.Error("postgres migrate", "err", err)
				os.Exit(1)
			}
		}
		ready = func(ctx context.Context) error { return postgres.Ping(ctx, pool) }
		pg = postgres.NewProfileRepository(pool)
		if cfg.Storage.Backend == config.StorageBackendPostgres {
			repo = postgres.NewMessageRepository(pool)
		}
	}
	if cfg.Storage.Backend == config.StorageBackendBadger {
		db, err := badgerstore.Open(badgerstore.Options{
			Path:     cfg.Storage.Badger.Path,
			InMemory: cfg.Storage.Badger.InMemory,
		}, lg)
		if err != nil {
			lg.Error("badger", "err", err)
			os.Exit(1)
		}
		closers = append(closers, func() { _ = db.Close() })
		repo = badgerstore.NewMessageStore(db, lg)
	}

	// --- profiles ---
	var dir profile.Directory
	if cfg.Profiles.Source == config.ProfileSourceStatic {
		static, err := profile.LoadStatic(cfg.Profiles.SeedPath)
		if err != nil {
			lg.Error("profiles", "path", cfg.Profiles.SeedPath, "err", err)
			os.Exit(1)
		}
		dir = static
	} else {
		dir = pg
	}
	if cfg.Redis.Addr != "" {
		rdb, err := profile.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lg.Error("redis", "err", err)
			os.Exit(1)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		dir = profile.NewCached(dir, rdb, cfg.Profiles.CacheTTL, lg)
	}

	// --- auth ---
	var authn auth.Authenticator = auth.HeaderTrust{}
	if cfg.Auth.Mode == config.AuthModeJWT {
		pub, err := auth.LoadRSAPublicKeyFromPEM(cfg.Auth.PublicKeyPath)
		if err != nil {
			lg.Error("auth public key", "path", cfg.Auth.PublicKeyPath, "err", err)
			os.Exit(1)
		}
		authn = auth.NewJWTVerifier(pub, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.ClockSkew)
	} else {
		lg.Warn("auth.mode=header trusts X-User-ID; only run behind an authenticating gateway")
	}

	// --- realtime ---
	registry := realtime.NewRegistry()
	broker := realtime.NewBroker(registry, lg)
	var natsRelay *relay.NATS
	if cfg.NATS.URL != "" {
		nc, err := relay.Connect(cfg.NATS.URL, cfg.Logging.Service+"-"+instanceID)
		if err != nil {
			lg.Error("nats", "err", err)
			os.Exit(1)
		}
		natsRelay = relay.NewNATS(nc, cfg.NATS.SubjectPrefix, instanceID, broker, lg)
		if err := natsRelay.Start(); err != nil {
			lg.Error("nats subscribe", "err", err)
			os.Exit(1)
		}
		broker.SetRelay(natsRelay)
	}

	// --- services ---
	conversations := service.NewConversationService(repo, dir, lg)
	chatSvc := service.NewChatService(repo, broker, conversations, lg)

	// --- WS ---
	wsServer := ws.NewServer(authn, chatSvc, registry, ws.Options{
		OutboundQueue:   cfg.Realtime.OutboundQueue,
		PingInterval:    cfg.Realtime.PingInterval,
		WriteTimeout:    cfg.Realtime.WriteTimeout,
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		RatePerSecond:   cfg.Realtime.RatePerSecond,
		Burst:           cfg.Realtime.Burst,
	}, lg)

	// --- HTTP ---
	router := httpx.NewRouter(httpx.Deps{
		Handler:     httpx.NewHandler(chatSvc),
		Auth:        authn,
		WS:          wsServer,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Ready:       ready,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(lg.Handler(), slog.LevelWarn),
	}

	// --- gRPC ---
	grpcSrv := grpcx.NewServer(authn, chatSvc, lg)

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		lg.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		lg.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		lg.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcSrv.Drain()
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		lg.Warn("http shutdown", "err", err)
	}
	// hijacked websocket connections are not covered by http.Server.Shutdown
	wsServer.Shutdown()
	if natsRelay != nil {
		if err := natsRelay.Close(); err != nil {
			lg.Warn("nats close", "err", err)
		}
	}
	grpcSrv.Stop(ctxShutdown)
	lg.Info("stopped")
}
