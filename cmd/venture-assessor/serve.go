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

	"github.com/spf13/cobra"

	"github.com/joelkehle/venture-assessment/internal/app"
	"github.com/joelkehle/venture-assessment/internal/httpapi"
	"github.com/joelkehle/venture-assessment/internal/pipeline"
	"github.com/joelkehle/venture-assessment/internal/report"
	"github.com/joelkehle/venture-assessment/internal/store"
	"github.com/joelkehle/venture-assessment/internal/telemetry"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assessment UI and API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTLPEndpoint != "")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown failed: %v", err)
		}
	}()

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	sched, err := pipeline.New(buildClients(cfg))
	if err != nil {
		return err
	}
	ctrl := app.New(ctx, sched, db, report.NewChromiumPDFRenderer(cfg.WebDir))
	handler := httpapi.NewServer(ctrl, cfg.WebDir)

	srv := &http.Server{Addr: cfg.Addr(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		ctrl.Cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("venture-assessor listening on %s (backend=%s, db=%s)", cfg.Addr(), cfg.Backend, cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
