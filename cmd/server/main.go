package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/library-lending/backend/internal/auth"
	"github.com/ayush/library-lending/backend/internal/catalog"
	"github.com/ayush/library-lending/backend/internal/config"
	"github.com/ayush/library-lending/backend/internal/loans"
	"github.com/ayush/library-lending/backend/internal/logging"
	"github.com/ayush/library-lending/backend/internal/middleware"
	"github.com/ayush/library-lending/backend/internal/respond"
	"github.com/ayush/library-lending/backend/internal/store"
)

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("config", err)
	}
	logging.Init(cfg.LogLevel)
	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		fatal("postgres connect", err)
	}
	pgStore := store.NewPostgresStore(pgPool)
	defer pgStore.Close()
	if err := pgStore.Migrate(ctx); err != nil {
		fatal("postgres migrate", err)
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		fatal("mongo connect", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		slog.Warn("mongo index", "error", err)
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		fatal("redis connect", err)
	}
	defer rdb.Close()

	// ── MinIO ────────────────────────────────────────────────
	minioStore, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		fatal("minio connect", err)
	}

	// ── Services ─────────────────────────────────────────────
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authSvc := auth.NewService(pgStore, tokens, auth.NewRefreshRegistry(rdb))
	catalogSvc := catalog.NewService(pgStore, minioStore)
	loanSvc := loans.NewService(pgStore, mongoStore, cfg.LoanPeriod)

	if cfg.AdminEmail != "" {
		admin, err := authSvc.BootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			fatal("admin bootstrap", err)
		}
		slog.Info("admin account ready", "user_id", admin.ID, "email", admin.Email)
	}

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(authSvc, cfg.CookieSecure)
	catalogHandler := catalog.NewHandler(catalogSvc)
	loanHandler := loans.NewHandler(loanSvc)
	authLimit := middleware.RateLimit(
		middleware.NewFixedWindowLimiter(rdb, "ratelimit:auth", cfg.AuthRateLimitPerMinute, time.Minute),
	)
	requireAuth := middleware.RequireAuth(tokens)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(pgStore, rdb))

	r.Route("/api", func(r chi.Router) {
		// Auth (public)
		r.With(authLimit).Post("/register", authHandler.Register)
		r.With(authLimit).Post("/login", authHandler.Login)
		r.With(authLimit).Post("/refresh-token", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)

		// Catalog (public)
		r.Get("/books", catalogHandler.List)
		r.Get("/books/{id}", catalogHandler.Get)
		r.Get("/books/{id}/cover", catalogHandler.Cover)

		// Member routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/user", authHandler.Me)
			r.Get("/user/loans", loanHandler.MyLoans)
			r.Get("/user/history", loanHandler.History)
			r.Post("/books/{id}/borrow", loanHandler.Borrow)
			r.Post("/loans/{id}/return", loanHandler.Return)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, middleware.RequireAdmin)
			r.Post("/books", catalogHandler.Create)
			r.Put("/books/{id}", catalogHandler.Update)
			r.Delete("/books/{id}", catalogHandler.Delete)
			r.Put("/books/{id}/cover", catalogHandler.UploadCover)
			r.Get("/loans", loanHandler.ListAll)
			r.Put("/loans/{id}/status", loanHandler.UpdateStatus)
			r.Get("/loans/{id}/events", loanHandler.Events)
		})
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		slog.Info("backend listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}

func healthHandler(pg *store.PostgresStore, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "health: postgres", "error", err)
			respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "postgres": "unreachable"})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.WarnContext(ctx, "health: redis", "error", err)
			respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "redis": "unreachable"})
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
