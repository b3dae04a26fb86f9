package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/milanbella/storyboard/auth"
	"github.com/milanbella/storyboard/config"
	"github.com/milanbella/storyboard/logger"
	"github.com/milanbella/storyboard/metrics"
	"github.com/milanbella/storyboard/session"
	"github.com/milanbella/storyboard/tracker"
)

func newRouter(
	cfg *config.Config,
	sessions *session.Manager,
	authStore *auth.Store,
	issuer *auth.TokenIssuer,
	verifier auth.Verifier,
	trackerHandler *tracker.Handler,
	m *metrics.Metrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(m))
	r.Use(sessions.Middleware)

	r.Method(http.MethodGet, auth.AuthorizePath, auth.NewAuthorizeHandler(cfg.OpenID, cfg.Auth, m))
	r.Method(http.MethodGet, auth.AuthorizeReturnPath, auth.NewAuthorizeReturnHandler(authStore, verifier, cfg.Auth, m))
	r.Method(http.MethodPost, auth.TokenPath, auth.NewTokenHandler(authStore, issuer, m))

	r.Route("/v1", func(r chi.Router) {
		trackerHandler.Routes(r, session.RequireUser)
	})

	r.Method(http.MethodGet, "/metrics", m.Handler())

	return r
}

func accessLog(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequest(r.Method, status)
			logger.L().Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
