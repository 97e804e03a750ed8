package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/savline-dev/savline/internal/api"
	"github.com/savline-dev/savline/internal/backup"
	"github.com/savline-dev/savline/internal/blob"
	"github.com/savline-dev/savline/internal/config"
	"github.com/savline-dev/savline/internal/notify"
	"github.com/savline-dev/savline/internal/service"
	"github.com/savline-dev/savline/internal/session"
	"github.com/savline-dev/savline/internal/store"
)

func main() {
	fmt.Println("Starting Savline Warranty Daemon...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	claimStore, err := store.NewFileStore(filepath.Join(cfg.DataDir, "claims.json"))
	if err != nil {
		log.Fatalf("Failed to initialize claim store: %v", err)
	}

	// A corrupt document is fatal; an absent one starts empty.
	claims, err := claimStore.LoadAll()
	if err != nil {
		log.Fatalf("Failed to load claim collection: %v", err)
	}
	fmt.Printf("Store ready. Loaded %d claims.\n", len(claims))

	blobs, err := blob.NewManager(filepath.Join(cfg.DataDir, "files"))
	if err != nil {
		log.Fatalf("Failed to initialize attachment storage: %v", err)
	}

	var mailer notify.Mailer
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Pass:     cfg.SMTPPass,
			SSL:      cfg.SMTPSSL,
			From:     cfg.MailFrom,
			FromName: cfg.MailSender,
		})
	} else {
		fmt.Println("No SMTP host configured, notifications go to the log.")
		mailer = notify.LogMailer{}
	}
	notifier := notify.NewNotifier(mailer, 64)

	claimService, err := service.New(claimStore, blobs, notifier, notify.Routes{
		Stores:  cfg.NotifyStores,
		Default: cfg.NotifyDefault,
	})
	if err != nil {
		log.Fatalf("Failed to build claim service: %v", err)
	}

	h := &api.Handler{
		Claims:   claimService,
		Sessions: session.NewGuard(cfg.AdminUser, cfg.AdminPasswordHash, cfg.SessionTTL),
		Blobs:    blobs,
		Backup:   backup.NewArchiver(claimStore, blobs),
	}

	r := gin.Default()
	api.Register(r, h)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Printf("Savline API listening on %s\n", cfg.ListenAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		fmt.Println("\nShutdown signal received. Draining...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	notifier.Close()
	fmt.Println("Notification queue drained. Exiting.")
}
