package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/budget"
	"expense-tracker/internal/category"
	"expense-tracker/internal/db"
	"expense-tracker/internal/expense"
	"expense-tracker/internal/maintenance"
	"expense-tracker/internal/observability"
	"expense-tracker/internal/respond"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires the whole application: config, database, auth, resource
// handlers, and middleware. Both the server binary and the serverless entry
// use it.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	accessSecret, err := mustEnv("ACCESS_TOKEN_SECRET")
	if err != nil {
		return nil, err
	}
	refreshSecret, err := mustEnv("REFRESH_TOKEN_SECRET")
	if err != nil {
		return nil, err
	}

	appEnv := envOrDefault("APP_ENV", "development")
	devMode := appEnv == "development"

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), appEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	tokens := auth.NewTokenManager(accessSecret, refreshSecret)
	tokens.WithTTLs(
		envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
		envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 168),
	)

	authRepo := auth.NewRepository(database)
	authService := auth.NewService(authRepo, tokens)
	authHandler := auth.NewHandler(authService, devMode)
	requireAuth := auth.Middleware(tokens, authRepo)

	expenseHandler := expense.NewHandler(expense.NewRepository(database), devMode)
	budgetHandler := budget.NewHandler(budget.NewRepository(database), devMode)

	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		envDaysOrDefault("AUTH_REFRESH_TOKEN_RETENTION_DAYS", 14),
		envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
	)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/refresh-token", authHandler.Refresh)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.Handle("GET /api/auth/profile", requireAuth(http.HandlerFunc(authHandler.Profile)))
	mux.Handle("PUT /api/auth/profile", requireAuth(http.HandlerFunc(authHandler.UpdateProfile)))

	mux.Handle("POST /api/expenses", requireAuth(http.HandlerFunc(expenseHandler.Create)))
	mux.Handle("GET /api/expenses", requireAuth(http.HandlerFunc(expenseHandler.List)))
	mux.Handle("GET /api/expenses/stats", requireAuth(http.HandlerFunc(expenseHandler.GetStats)))
	mux.Handle("GET /api/expenses/{id}", requireAuth(http.HandlerFunc(expenseHandler.GetByID)))
	mux.Handle("PUT /api/expenses/{id}", requireAuth(http.HandlerFunc(expenseHandler.Update)))
	mux.Handle("DELETE /api/expenses/{id}", requireAuth(http.HandlerFunc(expenseHandler.Delete)))

	mux.Handle("POST /api/budgets", requireAuth(http.HandlerFunc(budgetHandler.Create)))
	mux.Handle("GET /api/budgets", requireAuth(http.HandlerFunc(budgetHandler.List)))
	mux.Handle("GET /api/budgets/{id}", requireAuth(http.HandlerFunc(budgetHandler.GetByID)))
	mux.Handle("PUT /api/budgets/{id}", requireAuth(http.HandlerFunc(budgetHandler.Update)))
	mux.Handle("DELETE /api/budgets/{id}", requireAuth(http.HandlerFunc(budgetHandler.Delete)))

	mux.Handle("GET /api/categories", requireAuth(http.HandlerFunc(category.List)))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)

	mux.HandleFunc("GET /api/health", healthHandler(database))
	mux.HandleFunc("GET /{$}", rootHandler)
	mux.HandleFunc("/", notFoundHandler)

	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger,
			observability.CORSMiddleware(os.Getenv("CORS_ORIGIN"), mux)))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	respond.Success(w, http.StatusOK, "Expense Tracker API is running", map[string]string{
		"version": "1.0.0",
	})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	respond.Error(w, http.StatusNotFound, "Route not found - "+r.URL.Path)
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := database.PingContext(ctx); err != nil {
			respond.Error(w, http.StatusServiceUnavailable, "API is degraded")
			return
		}

		respond.Success(w, http.StatusOK, "API is healthy", map[string]string{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
