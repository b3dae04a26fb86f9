package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/milanbella/storyboard/auth"
	"github.com/milanbella/storyboard/config"
	"github.com/milanbella/storyboard/db"
	"github.com/milanbella/storyboard/logger"
	"github.com/milanbella/storyboard/metrics"
	"github.com/milanbella/storyboard/session"
	"github.com/milanbella/storyboard/tracker"
)

func newApp(configPath string) *fx.App {
	return fx.New(
		fx.Provide(
			func() (*config.Config, error) { return config.Load(configPath) },
			newLogger,
			newDB,
			newAuthStore,
			newTokenIssuer,
			newVerifier,
			metrics.New,
			session.NewManager,
			tracker.NewStore,
			newTrackerHandler,
			newRouter,
			newHTTPServer,
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l}
		}),
		fx.Invoke(func(*http.Server) {}),
	)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	l, err := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.Set(l)
	return l, nil
}

func newDB(lc fx.Lifecycle, cfg *config.Config) (*sql.DB, error) {
	ctx := context.Background()

	conn, err := db.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, conn, cfg.Database.Driver); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := conn.Close(); err != nil {
				return logger.LogErr(fmt.Errorf("close db: %w", err))
			}
			return nil
		},
	})

	return conn, nil
}

func newAuthStore(conn *sql.DB, cfg *config.Config) *auth.Store {
	return auth.NewStore(conn, cfg.Auth.AuthorizationCodeTTL)
}

func newTokenIssuer(conn *sql.DB, cfg *config.Config) *auth.TokenIssuer {
	return auth.NewTokenIssuer(conn, cfg.Auth)
}

func newVerifier(cfg *config.Config) auth.Verifier {
	return auth.NewHTTPVerifier(cfg.OpenID)
}

func newTrackerHandler(store *tracker.Store, cfg *config.Config, m *metrics.Metrics) *tracker.Handler {
	return tracker.NewHandler(store, cfg.Paging.MaxLimit, m)
}

func newHTTPServer(lc fx.Lifecycle, cfg *config.Config, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return logger.LogErr(fmt.Errorf("listen on %s: %w", srv.Addr, err))
			}
			logger.L().Info("listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error(fmt.Errorf("http server failed: %w", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})

	return srv
}
