package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"chatsync-be/internal/bootstrap"
	"chatsync-be/internal/config"
	"chatsync-be/internal/server"
	"chatsync-be/internal/tracer"
	"chatsync-be/pkg/database"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg := config.Load()

	shutdownTracer := tracer.InitTracer(cfg.Tracing)
	defer shutdownTracer(context.Background())
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	// 2. Initialize Database
	gormDB, err := database.NewGormDB(database.Options{
		DSN:          cfg.Database.Connection,
		Production:   cfg.IsProduction(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	// 4. Start Background Services
	if err := container.Start(ctx); err != nil {
		log.Fatalf("Failed to start background services: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
