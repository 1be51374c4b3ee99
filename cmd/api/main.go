package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mani-django09/smallpdf.us-sub000/internal/activity"
	"github.com/mani-django09/smallpdf.us-sub000/internal/config"
	"github.com/mani-django09/smallpdf.us-sub000/internal/convert"
	"github.com/mani-django09/smallpdf.us-sub000/internal/dispatch"
	"github.com/mani-django09/smallpdf.us-sub000/internal/handler"
	"github.com/mani-django09/smallpdf.us-sub000/internal/intake"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
	"github.com/mani-django09/smallpdf.us-sub000/internal/reaper"
	"github.com/mani-django09/smallpdf.us-sub000/internal/server"
	"github.com/mani-django09/smallpdf.us-sub000/internal/storage"
	"github.com/mani-django09/smallpdf.us-sub000/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := job.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open job store: %v", err)
	}
	log.Println("✓ Job store ready")

	hub := ws.NewHub()
	hub.Start(ctx)
	store.SetNotifier(hub.BroadcastJobUpdate)

	var logger activity.Logger = activity.Nop{}
	if cfg.ActivityAMQPURL != "" {
		publisher, err := activity.NewPublisher(cfg.ActivityAMQPURL, cfg.ActivityQueue)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
		logger = publisher
		log.Println("✓ Connected to RabbitMQ")
	}

	var mirror *storage.Mirror
	if cfg.S3Endpoint != "" {
		mirror, err = storage.NewMirror(ctx, &storage.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize artifact mirror: %v", err)
		}
		log.Println("✓ Connected to object storage")
	}

	in, err := intake.New(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Failed to prepare upload directory: %v", err)
	}

	registry := convert.NewRegistry(convert.Tools{
		Ghostscript: cfg.GhostscriptPath,
		LibreOffice: cfg.LibreOfficePath,
	})

	var dispatchMirror dispatch.Mirror
	var reaperMirror reaper.Remover
	if mirror != nil {
		dispatchMirror = mirror
		reaperMirror = mirror
	}

	dispatcher, err := dispatch.New(store, registry, cfg.OutputDir, cfg.WorkerSlots, dispatchMirror)
	if err != nil {
		log.Fatalf("Failed to initialize dispatcher: %v", err)
	}

	rp := reaper.New(store, cfg.UploadDir, cfg.OutputDir, cfg.SweepInterval, cfg.Retention, reaperMirror)
	go rp.Run(ctx)
	log.Println("✓ Expiry reaper running")

	h := handler.New(in, registry, dispatcher, store, logger, hub, cfg.Retention)
	g := server.NewServer(h, registry.Operations())

	srv := &http.Server{Addr: cfg.Port, Handler: g}
	go func() {
		log.Printf("🚀 Conversion service starting on %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
