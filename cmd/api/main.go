package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/vibecast/internal/api"
	"github.com/bobarin/vibecast/internal/config"
	"github.com/bobarin/vibecast/internal/delivery"
	"github.com/bobarin/vibecast/internal/services"
	"github.com/bobarin/vibecast/internal/storage"
	"github.com/bobarin/vibecast/internal/worker"
	"github.com/bobarin/vibecast/internal/workspace"
)

func main() {
	log.Println("Starting Vibecast API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to load render policy: %v", err)
	}
	if cfg.PolicyFile != "" {
		log.Printf("Loaded render policy overlay from %s", cfg.PolicyFile)
	}

	// Scratch space
	manager, err := workspace.NewManager(cfg.ScratchRoot)
	if err != nil {
		log.Fatalf("Failed to prepare scratch root: %v", err)
	}
	gate := workspace.NewGate(manager.Root())
	log.Printf("Scratch root: %s (reclaim policy: %s)", manager.Root(), cfg.ReclaimPolicy)

	var scheduler *workspace.Scheduler
	if cfg.ReclaimPolicy == config.ReclaimByAge {
		scheduler = workspace.NewScheduler(manager, gate, cfg.ReclaimInterval, cfg.ReclaimMaxAge)
		scheduler.Start()
		log.Printf("Age-based reclamation every %v (max age %v)", cfg.ReclaimInterval, cfg.ReclaimMaxAge)
	}

	// Media services
	ffmpegSvc := services.NewFFmpegService(cfg.FFmpegPath, cfg.FFprobePath)
	fetcher := services.NewFetcher()

	// Delivery: Supabase when configured, otherwise local download links
	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	deliverer := delivery.New(stor)
	if deliverer.Durable() {
		log.Printf("Durable delivery to Supabase bucket %q", stor.Bucket)
	} else {
		log.Println("No Supabase credentials, outputs are served from /download")
	}

	opts := worker.Options{
		Policy:         policy,
		FontPath:       cfg.ThumbnailFontPath,
		ReclaimOnEntry: cfg.ReclaimPolicy == config.ReclaimOnEntry,
	}

	// Job history and the Redis queue are independent; each is enabled by its own URL
	database, err := openHistory(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if database != nil {
		defer database.Close()
		log.Printf("Connected to %s job history", database.Driver())
		opts.History = database
	} else {
		log.Println("DATABASE_URL not set, job history disabled")
	}

	q, err := openQueue(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	if q != nil {
		defer q.Close()
		log.Println("Connected to Redis queue")
	} else {
		log.Println("REDIS_URL not set, background jobs disabled")
	}

	pipeline := worker.NewPipeline(manager, gate, ffmpegSvc, fetcher, deliverer, opts)

	// Nil pointers must not become non-nil interfaces
	var (
		jobQueue api.JobQueue
		jobStore api.JobStore
	)
	if q != nil {
		jobQueue = q
	}
	if database != nil {
		jobStore = database
	}

	// Create API handler
	handler := api.NewHandler(pipeline, manager, jobQueue, jobStore, api.HandlerConfig{
		PublicBaseURL: cfg.PublicBaseURL,
		ReclaimPolicy: cfg.ReclaimPolicy,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled && q != nil {
		log.Println("Worker enabled, starting background processing...")

		baseURL := cfg.PublicBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:" + cfg.APIPort
		}
		w := worker.New(q, pipeline, baseURL)

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
