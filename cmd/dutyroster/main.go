package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/dutyroster/internal/archive"
	"github.com/dukerupert/dutyroster/internal/auth"
	"github.com/dukerupert/dutyroster/internal/config"
	"github.com/dukerupert/dutyroster/internal/database"
	"github.com/dukerupert/dutyroster/internal/email"
	"github.com/dukerupert/dutyroster/internal/jobs"
	"github.com/dukerupert/dutyroster/internal/logging"
	"github.com/dukerupert/dutyroster/internal/push"
	"github.com/dukerupert/dutyroster/internal/server"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid-keys" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("generate vapid keys: %v", err)
		}
		fmt.Printf("DUTYROSTER_VAPID_PUBLIC_KEY=%s\nDUTYROSTER_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailer := email.NewClient(cfg.SendGridKey, cfg.MailFromName, cfg.MailFrom)
	if !mailer.Configured() {
		logger.Warn("SendGrid key not set, verification and reset codes will not be mailed")
	}

	var verifier auth.TokenVerifier = auth.DisabledVerifier{}
	if cfg.FirebaseCredentials != "" {
		fv, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseCredentials)
		if err != nil {
			logger.Error("firebase sign-in unavailable", "error", err)
		} else {
			verifier = fv
		}
	}

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
	if !pushSvc.Enabled() {
		logger.Info("VAPID keys not set, push notifications disabled")
	}

	srv := server.New(db, server.Options{
		Location:       cfg.Location,
		ApprovalWindow: cfg.ApprovalWindow,
		WSOrigins:      cfg.WSOrigins,
		Mailer:         mailer,
		Verifier:       verifier,
		Push:           pushSvc,
		Archive: archive.S3Config{
			Endpoint:   cfg.S3Endpoint,
			Bucket:     cfg.S3Bucket,
			Region:     cfg.S3Region,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Prefix:     cfg.S3Prefix,
			Passphrase: cfg.ArchivePassphrase,
		},
	}, logger)

	runner, err := srv.Jobs(jobs.Schedules{Cleanup: cfg.CleanupSchedule, Archive: cfg.ArchiveSchedule})
	if err != nil {
		logger.Error("failed to schedule jobs", "error", err)
		os.Exit(1)
	}
	runner.Start()
	srv.Notifier().Start(ctx)

	// No WriteTimeout: websocket connections stay open indefinitely.
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	go func() {
		logger.Info("dutyroster listening", "addr", httpServer.Addr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	runner.Stop(shutdownCtx)
	srv.Notifier().Stop()
}
