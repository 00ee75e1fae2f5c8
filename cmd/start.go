/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stegokey/backend-go/api"
	"github.com/stegokey/backend-go/api/middleware/auth"
	"github.com/stegokey/backend-go/internal/db"
	"github.com/stegokey/backend-go/internal/metrics"
	"github.com/stegokey/backend-go/internal/store"
	"github.com/stegokey/backend-go/pkg/ledger"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the stegokey HTTP server",
	RunE:  start,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().String("listen", ":5000", "Address the server listens on")
	startCmd.Flags().String("store-path", "", "Carrier store directory (empty keeps carriers in memory)")
	startCmd.Flags().String("db-url", "", "Postgres URL for the operation ledger")
	startCmd.Flags().Bool("migrate", false, "Apply ledger migrations on start")
	_ = viper.BindPFlag("server.listen", startCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("store.path", startCmd.Flags().Lookup("store-path"))
	_ = viper.BindPFlag("database.url", startCmd.Flags().Lookup("db-url"))
	_ = viper.BindPFlag("database.migrate", startCmd.Flags().Lookup("migrate"))
}

func start(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if known := knownEncoders(cfg.Video.Encoders); len(known) < len(cfg.Video.Encoders) {
		logger.WithFields(logrus.Fields{
			"configured": cfg.Video.Encoders,
			"available":  known,
		}).Warn("some video encoders are not available")
	}

	c, err := newClient("")
	if err != nil {
		return err
	}

	carriers, err := store.Open(store.Options{
		Path:   cfg.Store.Path,
		TTL:    cfg.Store.TTL,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer carriers.Close()
	go carriers.Run(ctx)

	recorder, closeLedger, err := openLedger(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeLedger()

	srvCfg := api.Config{
		BaseURL:        cfg.Server.BaseURL,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		CORSOrigins:    cfg.Server.CORS.Origins,
	}
	if cfg.Auth.Wellknown != "" {
		srvCfg.Auth, err = auth.OidcAuth(ctx, cfg.Auth.Wellknown, auth.Options{Logger: logger})
		if err != nil {
			return fmt.Errorf("configure auth: %w", err)
		}
	}

	r := api.NewServer(api.ServerOptions{
		Client:  c,
		Store:   carriers,
		Ledger:  recorder,
		Metrics: metrics.New(),
		Logger:  logger,
		Config:  srvCfg,
	}).Routes()

	_ = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		logger.WithFields(logrus.Fields{"method": method, "route": route}).Debug("loaded route")
		return nil
	})

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	// Start the HTTP server in a goroutine
	go func() {
		logger.WithField("listen", server.Addr).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-stopChan:
	case err := <-errChan:
		return err
	}
	logger.Info("shutting down server")

	// Create a context with a 15-second timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

// openLedger connects to the database when one is configured. Without a
// URL operations are not recorded.
func openLedger(ctx context.Context, c DatabaseConfig) (ledger.Recorder, func(), error) {
	if c.URL == "" {
		logger.Info("database.url not set, operation ledger disabled")
		return ledger.Nop{}, func() {}, nil
	}
	dbClient, err := db.NewClient(ctx, c.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("could not establish database connection: %w", err)
	}
	if c.Migrate {
		if err := dbClient.RunMigrations(ctx, logger); err != nil {
			dbClient.Close()
			return nil, nil, err
		}
	}
	return ledger.NewClient(dbClient), dbClient.Close, nil
}
