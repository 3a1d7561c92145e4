package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CrowderSoup/prioritease/config"
	"github.com/CrowderSoup/prioritease/database"
	"github.com/CrowderSoup/prioritease/handlers"
	"github.com/CrowderSoup/prioritease/services"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cmd))
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		logger.Println("Warning: JWT_SECRET is not set, using the development default")
	}

	db, err := database.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)
	store := database.NewStore(db)

	if cfg.HasAdmin() {
		created, err := ensureAdmin(ctx, store, cfg.Auth)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			logger.Printf("Created admin account %s", cfg.Auth.AdminEmail)
		}
	}

	authService := services.NewAuthService(store, cfg.Auth.JWTSecret, services.NewMailer(cfg.SMTP, logger), logger)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := services.NewHub(logger)
	go hub.Run(hubCtx)

	channels := []services.Channel{services.NewLiveChannel(hub)}
	if cfg.Push.TelegramToken != "" {
		push, err := services.NewTelegramChannel(cfg.Push.TelegramToken)
		if err != nil {
			logger.Printf("Warning: push notifications disabled: %v", err)
		} else {
			channels = append(channels, push)
		}
	}
	dispatcher := services.NewDispatcher(store, cfg.Dispatch.StatusPolicy, logger, channels...)

	if cfg.Dispatch.Every > 0 {
		scheduler := services.NewSchedulerService(time.UTC)
		if _, err := scheduler.ScheduleInterval(cfg.Dispatch.Every, func() {
			if _, err := dispatcher.DispatchDue(ctx, time.Now()); err != nil {
				logger.Printf("Error dispatching due notifications: %v", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule dispatch: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Printf("Dispatching due notifications every %s", cfg.Dispatch.Every)
	}

	h := handlers.NewHandler(handlers.Options{
		Store:      store,
		Auth:       authService,
		Hub:        hub,
		Dispatcher: dispatcher,
		Pictures:   services.NewPictureStore(cfg.Storage.UploadDir),
		Logger:     logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(h, handlers.NewAuthMiddleware(authService, h), cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Printf("Server starting on port %s", cfg.Server.Port)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
