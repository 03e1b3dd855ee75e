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

	"github.com/joho/godotenv"

	"github.com/kaiwa-dev/kaiwa/internal/adapter/summarizer"
	"github.com/kaiwa-dev/kaiwa/internal/config"
	"github.com/kaiwa-dev/kaiwa/internal/quota"
	store "github.com/kaiwa-dev/kaiwa/internal/repository"
	"github.com/kaiwa-dev/kaiwa/internal/service"
	"github.com/kaiwa-dev/kaiwa/internal/session"
	handler "github.com/kaiwa-dev/kaiwa/internal/transport/http"
	"github.com/kaiwa-dev/kaiwa/internal/transport/ws"
	"github.com/kaiwa-dev/kaiwa/policy"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg := config.Load()

	log.Printf("Starting kaiwa...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Max daily sessions: %d", cfg.MaxDailySessions)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize session registry
	registry := session.NewRegistry(cfg.MaxSessionDuration + cfg.SessionGracePeriod)

	// Initialize quota evaluator
	evaluator := quota.NewEvaluator(db, registry, cfg.MaxDailySessions)

	// Initialize summarization engine
	engine := summarizer.NewEngine(cfg.SummaryBaseURL, cfg.SummaryAPIKey, cfg.SummaryModel, cfg.SummaryTimeout)

	// Initialize admission policy engine
	ctx, cancelSweepers := context.WithCancel(context.Background())
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service
	svc := service.New(db, registry, evaluator, engine, policyEngine, cfg)

	// Start background sweepers
	go registry.RunReaper(ctx, cfg.ReaperInterval, cfg.StaleSessionThreshold)
	go svc.RunRecoverySweeper(ctx)

	// Create HTTP server
	wsServer := ws.NewServer(svc)
	e := handler.NewServer(svc, wsServer)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down kaiwa...")

	// Stop background sweepers, then drain the server
	cancelSweepers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("kaiwa stopped")
}
