package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/dosquisd/testing-kubernetes/internal/cache"
	"github.com/dosquisd/testing-kubernetes/internal/config"
	"github.com/dosquisd/testing-kubernetes/internal/handler"
	"github.com/dosquisd/testing-kubernetes/internal/repository"
	"github.com/dosquisd/testing-kubernetes/internal/service"
	"github.com/dosquisd/testing-kubernetes/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	cfg := config.Load()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.PostgresURI())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	// Ping database to verify connection
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("Successfully connected to database")

	// Run migrations
	if err := runMigrations(ctx, pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Connect to cache. The cache is best effort, so a dead Redis only
	// logs; every request falls through to the database.
	redisCache := cache.NewRedis(cfg.RedisAddr(), cfg.RedisPassword)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		log.Printf("Cache unreachable, proceeding without it: %v", err)
	} else {
		log.Println("Successfully connected to cache")
	}

	// Initialize repository, service and handler
	userRepo := repository.NewUserRepository(pool)
	userService := service.NewUserService(userRepo, redisCache)
	userHandler := handler.NewUserHandler(userService)

	mux := http.NewServeMux()
	userHandler.RegisterRoutes(mux)

	// Add health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Telemetry middleware, skipped when the sink is unreachable
	var root http.Handler = mux
	writer, err := telemetry.NewQuestDBWriter(ctx, cfg.QuestDBAddr(), cfg.QuestDBUser, cfg.QuestDBPassword, cfg.QuestDBTable)
	if err != nil {
		log.Printf("Telemetry disabled: %v", err)
	} else {
		middleware := telemetry.NewMiddleware(writer)
		defer func() {
			middleware.Close()
			if err := writer.Close(context.Background()); err != nil {
				log.Printf("Failed to close telemetry writer: %v", err)
			}
		}()
		root = middleware.Wrap(mux)
	}

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(root, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown. ListenAndServe returns as soon as Shutdown
	// starts, so wait for the drain to finish before the deferred
	// cleanup tears down the telemetry pipeline and the pool.
	idleConnsClosed := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		close(idleConnsClosed)
	}()

	log.Printf("API server listening on %s", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	<-idleConnsClosed

	log.Println("Server stopped gracefully")
	return nil
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migration := `
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			age INTEGER,
			is_active BOOLEAN,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`

	_, err := pool.Exec(ctx, migration)
	if err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}
