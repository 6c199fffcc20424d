package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelkehle/venture-assessment/internal/pipeline"
	"github.com/joelkehle/venture-assessment/internal/report"
	"github.com/joelkehle/venture-assessment/internal/store"
	"github.com/joelkehle/venture-assessment/internal/telemetry"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

var (
	analyzeFormat string
	analyzeOutput string
	analyzeSave   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <company-url>",
	Short: "Run one assessment and print the results",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "json", "Output format: json or markdown")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Write results to this file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "Persist the run to DB_PATH")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeFormat != "json" && analyzeFormat != "markdown" {
		return fmt.Errorf("unknown format %q", analyzeFormat)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTLPEndpoint != "")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	sched, err := pipeline.New(buildClients(cfg))
	if err != nil {
		return err
	}
	sched.Subscribe(logEvent)

	started := time.Now()
	agg, runErr := sched.Run(ctx, args[0])
	if analyzeSave && agg != nil {
		if err := saveRun(cfg.DBPath, agg, sched.Status(), runErr, started); err != nil {
			log.Printf("save run failed: %v", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	out := io.Writer(cmd.OutOrStdout())
	if analyzeOutput != "" {
		f, err := os.Create(analyzeOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return writeResults(out, agg, analyzeFormat)
}

func writeResults(w io.Writer, agg *venture.Aggregate, format string) error {
	if format == "markdown" {
		_, err := io.WriteString(w, report.BuildMarkdown(agg, nil, time.Now()))
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(agg)
}

func logEvent(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventPhaseStart:
		log.Printf("%s started (estimated %.0fs)", e.Name, e.Estimated)
	case pipeline.EventPhaseComplete:
		log.Printf("%s completed in %.1fs", e.Name, e.Duration)
	case pipeline.EventPhaseError:
		log.Printf("%s failed: %s", e.Name, e.Message)
	case pipeline.EventCancelled:
		log.Printf("analysis cancelled")
	}
}

func saveRun(dbPath string, agg *venture.Aggregate, status pipeline.RunStatus, runErr error, started time.Time) error {
	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	run := store.Run{
		RunID:           agg.RunID,
		CompanyURL:      agg.CompanyURL,
		Status:          string(status),
		TechDescription: agg.TechDescription,
		Results:         agg,
		StartedAt:       started,
		CompletedAt:     time.Now(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
		run.FailedPhase = pipeline.PhaseFromError(runErr)
	}
	return db.SaveRun(context.Background(), run)
}
