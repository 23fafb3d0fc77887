// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware and
// routes, and decides which optional features are switched on:
//   - auth routes need JWT_SECRET
//   - Google OAuth routes additionally need Google credentials
//   - the catalog cache and the mailer are passed in by main
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go creates: config, logger, mailer, catalog cache
//	Server.New() creates: sqlite.DB → services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/course-review/internal/auth"
	"github.com/sakif/course-review/internal/cache"
	"github.com/sakif/course-review/internal/config"
	"github.com/sakif/course-review/internal/handler"
	"github.com/sakif/course-review/internal/i18n"
	"github.com/sakif/course-review/internal/mail"
	"github.com/sakif/course-review/internal/middleware"
	sqliteRepo "github.com/sakif/course-review/internal/repository/sqlite"
	"github.com/sakif/course-review/internal/service"
)

// GoogleClient is what the OAuth routes need from Google. auth.GoogleProvider
// implements it; tests pass a fake.
type GoogleClient interface {
	handler.AuthURLer
	service.GoogleExchanger
}

// Deps are the external integrations main decides on.
type Deps struct {
	Mailer mail.Mailer
	Cache  cache.CatalogCache
	// Google overrides the provider built from the config.
	Google GoogleClient
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the HTTP
// server has drained so pending writes are flushed and the file lock is
// released.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	texts  *i18n.Loader
}

// New opens the database and wires every layer.
func New(ctx context.Context, cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Mailer == nil {
		deps.Mailer = mail.NewConsoleMailer(logger)
	}
	if deps.Cache == nil {
		deps.Cache = cache.NopCatalogCache{}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The OAuth error pages and any server-rendered text use these; load
	// them now so T never falls back to keys at request time.
	texts := i18n.NewLoader(nil, logger)
	if err := texts.Preload(ctx, i18n.Languages...); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading translations: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		texts:  texts,
	}
	if err := s.setupRoutes(deps); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// DB exposes the store so callers (tests, seeding) can reach it.
func (s *Server) DB() *sqliteRepo.DB { return s.db }

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz
//	GET    /api/i18n/{lang}                    translations
//	PUT    /api/language                       language cookie
//	GET    /api/courses[/{code}[/teaching-records|/reviews]]
//	GET    /api/terms[/{code}]
//	GET    /api/listings/courses|instructors   filter/sort/paginate
//	GET    /api/reviews/{id}
//	POST   /api/auth/register|login|logout|verification|verification/verify|password-reset|password-reset/complete
//	GET    /api/auth/username-availability, /api/auth/password-reset/validate
//	GET    /api/auth/me                        [auth]
//	PUT    /api/auth/me/name|password          [auth]
//	POST   /api/reviews, PUT|DELETE /api/reviews/{id}   [auth]
//	GET    /api/me/reviews, GET|POST /api/me/favorites, DELETE /api/me/favorites/{type}/{key}  [auth]
//	GET    /oauth/google/link [auth], /oauth/google/login, /oauth/callback, /oauth/login-callback
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID - assigns an id the logger includes
// 2. RealIP - client IP from proxy headers
// 3. Logger - one line per request
// 4. Recoverer - panics become 500s instead of crashing
// 5. i18n - negotiated language in the request context
func (s *Server) setupRoutes(deps Deps) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(i18n.Middleware)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	cookies := handler.CookieConfig{Secure: strings.HasPrefix(s.config.BaseURL, "https://")}
	validate := handler.NewValidator()

	// DEPENDENCY CHAIN:
	//   s.db implements every repository interface
	//   services receive the interfaces, handlers receive the services
	catalogService := service.NewCatalogService(s.db, s.db, deps.Cache, s.logger)
	reviewService := service.NewReviewService(s.db, s.db, s.db, deps.Cache, s.logger)
	favoriteService := service.NewFavoriteService(s.db, s.db, s.logger)

	catalogHandler := handler.NewCatalogHandler(catalogService, s.logger)
	reviewHandler := handler.NewReviewHandler(reviewService, s.logger)
	favoriteHandler := handler.NewFavoriteHandler(favoriteService, validate, s.logger)
	i18nHandler := handler.NewI18nHandler(s.texts, validate, cookies, s.logger)

	// Without a JWT secret nobody can sign in; reads stay anonymous.
	requireAuth := func(next http.Handler) http.Handler { return next }
	optionalAuth := requireAuth
	var (
		authHandler  *handler.AuthHandler
		authService  *service.AuthService
		oauthHandler *handler.OAuthHandler
	)
	if s.config.AuthEnabled() {
		tokens, err := auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		requireAuth = auth.RequireAuth(tokens)
		optionalAuth = auth.OptionalAuth(tokens)

		authService = service.NewAuthService(s.db, s.db, tokens, auth.NewPasswordService(), deps.Mailer, service.AuthConfig{
			SessionTTL:               s.config.SessionTTL,
			RememberTTL:              s.config.RememberTTL,
			RequireEmailVerification: s.config.RequireEmailVerification,
			BaseURL:                  s.config.BaseURL,
		}, s.logger)
		authHandler = handler.NewAuthHandler(authService, validate, cookies, s.logger)

		google := deps.Google
		if google == nil && s.config.GoogleEnabled() {
			google = auth.NewGoogleProvider(s.config.GoogleClientID, s.config.GoogleClientSecret, s.config.GoogleCallbackBase)
		}
		if google != nil {
			oauthService := service.NewOAuthService(s.db, google, authService, s.logger)
			oauthHandler = handler.NewOAuthHandler(google, oauthService, s.texts, cookies, s.logger)
		} else {
			s.logger.Warn("Google credentials not set, OAuth routes are disabled")
		}
	} else {
		s.logger.Warn("JWT_SECRET not set, authentication is disabled")
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/i18n/{lang}", i18nHandler.HandleTranslations)
		r.Put("/language", i18nHandler.HandleSetLanguage)

		r.Get("/courses", catalogHandler.HandleCourses)
		r.Get("/courses/{code}", catalogHandler.HandleCourse)
		r.Get("/courses/{code}/teaching-records", catalogHandler.HandleTeachingRecords)
		r.Get("/terms", catalogHandler.HandleTerms)
		r.Get("/terms/{code}", catalogHandler.HandleTerm)
		r.Get("/listings/courses", catalogHandler.HandleCourseListing)
		r.Get("/listings/instructors", catalogHandler.HandleInstructorListing)

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/courses/{code}/reviews", reviewHandler.HandleListByCourse)
			r.Get("/reviews/{id}", reviewHandler.HandleGet)
		})

		if authHandler == nil {
			return
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/username-availability", authHandler.HandleNameAvailability)
			r.Post("/verification", authHandler.HandleSendCode)
			r.Post("/verification/verify", authHandler.HandleVerifyCode)
			r.Post("/password-reset", authHandler.HandleRequestReset)
			r.Get("/password-reset/validate", authHandler.HandleValidateReset)
			r.Post("/password-reset/complete", authHandler.HandleCompleteReset)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", authHandler.HandleMe)
				r.Put("/me/name", authHandler.HandleUpdateName)
				r.Put("/me/password", authHandler.HandleUpdatePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/reviews", reviewHandler.HandleCreate)
			r.Put("/reviews/{id}", reviewHandler.HandleUpdate)
			r.Delete("/reviews/{id}", reviewHandler.HandleDelete)
			r.Get("/me/reviews", reviewHandler.HandleListMine)
			r.Get("/me/favorites", favoriteHandler.HandleList)
			r.Post("/me/favorites", favoriteHandler.HandleAdd)
			r.Delete("/me/favorites/{type}/{key}", favoriteHandler.HandleRemove)
		})
	})

	if oauthHandler != nil {
		s.router.Route("/oauth", func(r chi.Router) {
			r.With(requireAuth).Get("/google/link", oauthHandler.HandleLinkStart)
			r.Get("/google/login", oauthHandler.HandleLoginStart)
			r.With(optionalAuth).Get("/callback", oauthHandler.HandleLinkCallback)
			r.Get("/login-callback", oauthHandler.HandleLoginCallback)
		})
	}
	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
			slog.Bool("auth", s.config.AuthEnabled()),
			slog.Bool("google", s.config.GoogleEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
