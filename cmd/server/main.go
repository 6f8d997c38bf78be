package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mlops-pipeline/internal/adapters/primary/http/handlers"
	"mlops-pipeline/internal/adapters/primary/http/middleware"
	"mlops-pipeline/internal/adapters/secondary/postgres"
	"mlops-pipeline/internal/bootstrap"
	"mlops-pipeline/internal/config"
	"mlops-pipeline/internal/core/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	bootstrap.InitLogger(cfg.Logger)

	// Registry database
	pool, err := bootstrap.OpenRegistry(context.Background(), cfg.Database)
	if err != nil {
		log.Fatalf("open registry: %v", err)
	}
	defer pool.Close()

	// Run store
	db, err := bootstrap.OpenRunStore(cfg.RunStore)
	if err != nil {
		log.Fatalf("open run store: %v", err)
	}
	defer db.Close()

	// ============================================================================
	// Hexagonal Architecture Wiring
	// ============================================================================

	// Secondary Adapters (Output Ports - Repositories)
	modelRepo := postgres.NewRegisteredModelRepository(pool)
	versionRepo := postgres.NewModelVersionRepository(pool)

	// Argo Workflow Submitter (Optional - based on config)
	submitter := bootstrap.WorkflowSubmitter(cfg)

	// Core Services (Application Layer)
	modelSvc := services.NewRegisteredModelService(modelRepo)
	versionSvc := services.NewModelVersionService(versionRepo, modelRepo)
	runSvc := bootstrap.PipelineRuns(cfg, db, bootstrap.StageServices(cfg, pool), submitter)

	// Primary Adapter (HTTP Handlers)
	h := handlers.New(modelSvc, versionSvc, runSvc)

	// Setup router
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())

	h.RegisterRoutes(router.Group("/api/v1/model-registry"))
	h.RegisterPipelineRoutes(router.Group("/api/v1/pipeline-jobs"))

	// Health check with DB ping
	router.GET("/healthz", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("server forced shutdown: %v", err)
	}
	if err := runSvc.Shutdown(ctx); err != nil {
		log.Errorf("pipeline runs interrupted: %v", err)
	}

	log.Info("server stopped")
}
