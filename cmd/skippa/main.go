// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/chimailo/skippa/internal/apiclient"
	"github.com/chimailo/skippa/internal/cache"
	"github.com/chimailo/skippa/internal/config"
	"github.com/chimailo/skippa/internal/handler"
	"github.com/chimailo/skippa/internal/handoff"
	"github.com/chimailo/skippa/internal/logging"
	"github.com/chimailo/skippa/internal/metrics"
	"github.com/chimailo/skippa/internal/middleware"
	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/render"
	"github.com/chimailo/skippa/internal/session"
	"github.com/chimailo/skippa/internal/store"
	"github.com/chimailo/skippa/internal/version"
	"github.com/chimailo/skippa/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.BoolVar(showVersion, "v", false, "Show version information and exit (shorthand)")
	showHelp := flag.Bool("help", false, "Show help message and exit")
	flag.BoolVar(showHelp, "h", false, "Show help message and exit (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Skippa - logistics web front end\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_API_BASE_URL     Backend API base URL (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_SESSION_SECRET   Session secret, min 32 bytes (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_AUTH_SECRET      Hand-off ticket signing key, min 32 bytes (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_API_TIMEOUT      Backend request timeout in seconds (default: 30)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_DB_PATH          Session database path (default: ./data/skippa.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_SESSION_LIFETIME Session lifetime in hours (default: 24)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_SERVER_HOST      Server host (default: localhost)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_ENV              Environment: development, production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_LOG_LEVEL        Log level: debug, info, warn, error (default: info)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_REDIS_URL        Redis URL for hand-off slots and caches (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_CACHE_PREFIX     Cache key prefix (default: skippa:)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_CACHE_TTL        Default cache TTL in seconds (default: 300)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_HANDOFF_TTL      Held password lifetime in seconds (default: 120)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_OTP_WINDOW       Verification countdown in seconds (default: 120)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SKIPPA_OTP_LENGTH       Verification code length (default: 6)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("Skippa %s\n", appVersion)
		fmt.Printf("  Commit:  %s\n", appGitCommit)
		fmt.Printf("  Built:   %s\n", appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	info := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	metrics.Init()

	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logging.ParseLevel(cfg.LogLevel),
	})
	logger := slog.New(logging.NewContextHandler(textHandler, metrics.LogEvent))
	slog.SetDefault(logger)
	slog.Info("starting skippa", "version", info.String())

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing session database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	api, err := apiclient.New(apiclient.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeoutDuration(),
	})
	if err != nil {
		return fmt.Errorf("creating api client: %w", err)
	}

	sessionManager := session.New(db, cfg.SessionLifetimeDuration(), cfg.IsDevelopment())
	sessions := session.NewStore(sessionManager, api)
	slog.Info("session manager initialized", "lifetime", cfg.SessionLifetimeDuration())

	appCache := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.CacheTTLDuration(),
	})
	defer func() {
		if err := appCache.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()

	passwords := handoff.New(handoff.Options{
		Cache:  appCache,
		Secret: []byte(cfg.AuthSecret),
		TTL:    cfg.HandoffTTLDuration(),
		Secure: !cfg.IsDevelopment(),
	})

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	contentFS, err := fs.Sub(web.Content, "content")
	if err != nil {
		return fmt.Errorf("getting content fs: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS: templatesFS,
		ContentFS:   contentFS,
		Flash:       sessions,
		IsDev:       cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}
	slog.Info("template renderer initialized")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	go loginProtection.Run(ctx, 5*time.Minute)

	authHandler := handler.NewAuthHandler(renderer, sessions, api, passwords, loginProtection)
	verifyHandler := handler.NewVerifyHandler(renderer, sessions, api, passwords, cfg.OTPLength, cfg.OTPWindowDuration())
	onboardingHandler := handler.NewOnboardingHandler(renderer, sessions, api)
	accountHandler := handler.NewAccountHandler(renderer, sessions, api)
	adminHandler := handler.NewAdminHandler(renderer, sessions, api)
	rolesHandler := handler.NewRolesHandler(renderer, sessions, api, appCache)
	healthHandler := handler.NewHealthHandler(db, appCache, info.Version)
	publicHandler := handler.NewPublicHandler(renderer)

	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(metrics.Instrument)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	// The countdown is a long-lived event stream.
	r.Use(middleware.Timeout(30*time.Second, handler.VerifyPath+"/countdown"))
	r.Use(middleware.StripTrailingSlash)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.RequestContext)
	r.Use(sessionManager.LoadAndSave)
	r.Use(middleware.LoadSession(sessions))
	r.Use(middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.ServerAddr())))
	slog.Info("security middleware initialized", "hsts", !cfg.IsDevelopment())

	formLimiter := middleware.NewRateLimiter(1, 10).Middleware()

	// Public pages
	r.Get("/", publicHandler.Home)
	for _, slug := range []string{"about", "contact", "faq", "privacy", "terms"} {
		r.Get("/"+slug, publicHandler.Page)
	}

	// Signed-out pages
	r.Group(func(r chi.Router) {
		r.Use(middleware.RedirectIfAuthenticated(sessions))
		r.Use(middleware.NoStore)

		r.Get("/login", authHandler.LoginForm)
		r.With(loginProtection.Middleware()).Post("/login", authHandler.Login)
		r.Get("/register", authHandler.RegisterForm)
		r.With(formLimiter).Post("/register", authHandler.Register)
		r.Get("/forgot-password", authHandler.ForgotPasswordForm)
		r.With(formLimiter).Post("/forgot-password", authHandler.ForgotPassword)
		r.Get("/reset-password", authHandler.ResetPasswordForm)
		r.With(formLimiter).Post("/reset-password", authHandler.ResetPassword)
	})

	// Account verification
	r.Route(handler.VerifyPath, func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Get("/", verifyHandler.Show)
		r.With(formLimiter).Post("/", verifyHandler.Submit)
		r.With(formLimiter).Post("/resend", verifyHandler.Resend)
		r.Get("/countdown", verifyHandler.Countdown)
	})

	r.Post("/logout", authHandler.Logout)

	// Merchant area
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessions))
		r.Use(middleware.RequireMerchant)
		r.Use(middleware.NoStore)

		r.Get("/onboarding", onboardingHandler.Index)
		r.Get("/onboarding/welcome", onboardingHandler.Welcome)
		r.Get("/onboarding/{variant}", onboardingHandler.Step)
		r.Post("/onboarding/{variant}", onboardingHandler.StepSubmit)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOnboarded)
			r.Get("/dashboard", accountHandler.Dashboard)
			r.Get("/profile", accountHandler.Profile)
			r.Post("/profile", accountHandler.UpdateProfile)
			r.Post("/profile/password", accountHandler.ChangePassword)
		})
	})

	// Admin console
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessions))
		r.Use(middleware.RequireAdmin)
		r.Use(middleware.NoStore)

		r.Get("/", adminHandler.Dashboard)
		r.With(viewPerm(model.PagePartners)).Get("/partners", adminHandler.Partners)
		r.With(viewPerm(model.PageTeam)).Get("/team", adminHandler.Team)
		r.With(viewPerm(model.PageReports)).Get("/reports", adminHandler.Reports)
		r.With(viewPerm(model.PageSettlements)).Get("/settlements", adminHandler.Settlements)
		r.With(viewPerm(model.PageCustomers)).Get("/customers", adminHandler.Customers)

		r.Route("/roles", func(r chi.Router) {
			r.With(viewPerm(model.PageRoles)).Get("/", rolesHandler.List)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(model.PageRoles + ":" + model.ActionCreate))
				r.Get("/new", rolesHandler.New)
				r.Post("/", rolesHandler.Create)
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(model.PageRoles + ":" + model.ActionEdit))
				r.Get("/{id}/edit", rolesHandler.Edit)
				r.Post("/{id}", rolesHandler.Update)
			})
			r.With(middleware.RequirePermission(model.PageRoles+":"+model.ActionDelete)).
				Post("/{id}/delete", rolesHandler.Delete)
		})

		r.Get("/profile", accountHandler.Profile)
		r.Post("/profile", accountHandler.UpdateProfile)
		r.Post("/profile/password", accountHandler.ChangePassword)
	})

	// Health and metrics
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Handle("/metrics", metrics.Handler())

	// Static assets: cache for 1 year (31536000 seconds)
	staticFS, err := fs.Sub(web.Static, "static/dist")
	if err != nil {
		return fmt.Errorf("getting static fs: %w", err)
	}
	staticHandler := middleware.StaticCache(31536000)(http.StripPrefix("/static/dist/", http.FileServer(http.FS(staticFS))))
	r.Handle("/static/dist/*", staticHandler)

	r.NotFound(publicHandler.NotFound)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// No WriteTimeout: the verification countdown streams for minutes.
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "api", cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func viewPerm(page string) func(http.Handler) http.Handler {
	return middleware.RequirePermission(model.ViewPermission(page))
}
