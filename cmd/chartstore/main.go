// Command chartstore runs the Plotly chart storage HTTP API.
//
// Configuration comes from the environment (a local .env file is loaded when
// present): STORAGE_BACKEND selects mongo or memory, MONGODB_URL /
// DATABASE_NAME / COLLECTION_NAME point at the document store, HOST and PORT
// set the listen address, and ALLOWED_ORIGINS / ALLOWED_HOSTS / TRUST_PROXY
// tune the security middleware.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	chartstore "github.com/joelmoran101/chartstore"
	"github.com/joelmoran101/chartstore/instrumentation"
	"github.com/joelmoran101/chartstore/internal/util"
	"github.com/joelmoran101/chartstore/storage"
	"github.com/joelmoran101/chartstore/storage/memory"
	"github.com/joelmoran101/chartstore/storage/mongo"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = "8000"

	// shutdownTimeout bounds the drain of in-flight requests plus the
	// storage disconnect on SIGINT/SIGTERM.
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	logger := setupLogger()
	slog.SetDefault(logger)

	store, backend, err := setupStorage(logger)
	if err != nil {
		logger.Error("Failed to initialize storage", "backend", backend, "error", err)
		os.Exit(1)
	}

	server, err := chartstore.NewServer(store, configFromEnv(), logger)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	var inst *instrumentation.Instrumentation
	if getBoolEnv("OTEL_ENABLED", false) {
		inst, err = instrumentation.New(instrumentation.Config{
			ServiceName:    "chartstore",
			ServiceVersion: chartstore.Version,
			Enabled:        true,
		})
		if err != nil {
			logger.Error("Failed to initialize instrumentation", "error", err)
			os.Exit(1)
		}
		server.SetInstrumentation(inst)
		if memStore, ok := store.(*memory.Store); ok {
			memStore.SetInstrumentation(inst)
		}
	}

	host := getEnvOrDefault("HOST", defaultHost)
	port := getEnvOrDefault("PORT", defaultPort)
	if util.IsAllInterfaces(host) {
		logger.Warn("⚠️  SECURITY NOTICE: Binding to all interfaces",
			"host", host,
			"recommendation", "Set HOST to a specific address and front the service with a reverse proxy")
	}

	handler := chartstore.NewHandler(server, logger)
	httpServer := &http.Server{
		Addr:         net.JoinHostPort(host, port),
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting chartstore server",
			"addr", httpServer.Addr,
			"backend", backend,
			"version", chartstore.Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if err := server.Close(shutdownCtx); err != nil {
		logger.Error("Server close failed", "error", err)
	}
	if inst != nil {
		if err := inst.Shutdown(shutdownCtx); err != nil {
			logger.Error("Instrumentation shutdown failed", "error", err)
		}
	}
	logger.Info("Shutdown complete")
}

// setupStorage builds the storage backend named by STORAGE_BACKEND.
func setupStorage(logger *slog.Logger) (storage.Store, string, error) {
	backend := strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", "mongo"))

	switch backend {
	case "memory":
		store := memory.New()
		store.SetLogger(logger)
		logger.Warn("Using in-memory storage, data will not survive restarts")
		return store, backend, nil

	case "mongo":
		store, err := mongo.New(mongo.Config{
			URI:        getEnvOrDefault("MONGODB_URL", "mongodb://localhost:27017"),
			Database:   os.Getenv("DATABASE_NAME"),
			Collection: os.Getenv("COLLECTION_NAME"),
			Logger:     logger,
		})
		return store, backend, err

	default:
		return nil, backend, fmt.Errorf("unknown STORAGE_BACKEND %q (expected mongo or memory)", backend)
	}
}

// configFromEnv assembles the server configuration. Unset values stay zero
// and pick up secure defaults inside NewServer.
func configFromEnv() *chartstore.Config {
	return &chartstore.Config{
		RateLimit: chartstore.RateLimitConfig{
			MaxRequestsPerWindow: getIntEnv("RATE_LIMIT_MAX_REQUESTS", 0),
			TrustProxy:           getBoolEnv("TRUST_PROXY", false),
			TrustedProxyCount:    getIntEnv("TRUSTED_PROXY_COUNT", 0),
		},
		Security: chartstore.SecurityConfig{
			AllowedHosts:       splitCSV(os.Getenv("ALLOWED_HOSTS")),
			CSRFCookieSecure:   getBoolEnv("CSRF_COOKIE_SECURE", false),
			EnableAuditLogging: getBoolEnv("ENABLE_AUDIT_LOGGING", true),
		},
		CORS: chartstore.CORSConfig{
			AllowedOrigins: splitCSV(os.Getenv("ALLOWED_ORIGINS")),
		},
	}
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: getLogLevel()}

	var handler slog.Handler
	if getBoolEnv("LOG_JSON", true) {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func getLogLevel() slog.Level {
	if getBoolEnv("DEBUG", false) {
		return slog.LevelDebug
	}
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// splitCSV parses a comma-separated env value into a slice, trimming spaces.
// Empty input returns nil so the secure defaults apply.
func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
