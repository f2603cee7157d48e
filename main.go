package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"clipforge/ai"
	"clipforge/api"
	"clipforge/config"
	"clipforge/facerec"
	"clipforge/ffmpeg"
	"clipforge/jobstore"
	"clipforge/pipeline"
	"clipforge/store"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize dependencies
	runner, err := ffmpeg.NewRunner(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize media runner: %v", err)
	}

	gateway, err := store.NewMinioGateway(context.Background(), store.Config{
		Endpoint:     cfg.StoreEndpoint,
		AccessKey:    cfg.StoreAccessKey,
		SecretKey:    cfg.StoreSecretKey,
		Bucket:       cfg.StoreBucket,
		UseSSL:       cfg.StoreUseSSL,
		SignedURLTTL: cfg.SignedURLTTL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object store gateway: %v", err)
	}

	jobs, err := jobstore.NewGormStore(cfg.JobDBPath)
	if err != nil {
		log.Fatalf("Failed to initialize job store: %v", err)
	}

	describer := ai.NewClient(cfg)
	faces := facerec.NewClient(cfg)

	// 3. Initialize the job executor
	executor, err := pipeline.NewExecutor(cfg, jobs, gateway, runner, describer, faces)
	if err != nil {
		log.Fatalf("Failed to initialize job executor: %v", err)
	}

	// 4. Set up router and server
	router := api.SetupRouter(executor, jobs, gateway, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 5. Start background services and HTTP server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executor.Start(ctx)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 6. Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	// Restore default behavior on the interrupt signal and notify user of shutdown.
	stop()
	log.Println("Shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the requests it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
