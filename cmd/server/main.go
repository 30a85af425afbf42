package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/accountd/internal/api"
	"github.com/charlesng35/accountd/internal/app"
	"github.com/charlesng35/accountd/internal/auth"
	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/services"
	"github.com/charlesng35/accountd/pkg/logger"
	"github.com/charlesng35/accountd/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("accountd", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	db := database.New(cfg.DatabaseSettings())
	handle, err := db.Handle()
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrate(handle); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Info("database ready", zap.String("driver", cfg.Database.Driver))

	accounts, err := services.NewAccountService(db)
	if err != nil {
		return err
	}
	credentials, err := services.NewCredentialService(db)
	if err != nil {
		return err
	}
	changes, err := services.NewChangeService(db, credentials,
		services.WithChangeTTL(cfg.Changes.TTL),
		services.WithChangeTokenLength(cfg.Changes.TokenLength),
	)
	if err != nil {
		return err
	}

	var directoryOpts []services.DirectoryOption
	if cfg.Email.SMTP.Enabled {
		mailer := mail.NewSMTPMailer(mail.SMTPSettings{
			Enabled:  true,
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
			From:     cfg.Email.SMTP.From,
			Timeout:  cfg.Email.SMTP.Timeout,
		})
		directoryOpts = append(directoryOpts, services.WithDirectoryMailer(mailer, cfg.Server.BaseURL))
	}

	directory, err := services.NewDirectoryService(db, accounts, credentials, changes, directoryOpts...)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.Auth.JWT.Secret,
		Issuer: cfg.Auth.JWT.Issuer,
		TTL:    cfg.Auth.JWT.TTL,
	}, directory)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(cfg, db, directory, changes, accounts, tokens)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return multierr.Append(err, db.Close())
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := db.Close(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}
