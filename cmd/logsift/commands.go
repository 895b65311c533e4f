package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/logsift/config"
	"github.com/mohammad-safakhou/logsift/internal/agents"
	"github.com/mohammad-safakhou/logsift/internal/artifact"
	"github.com/mohammad-safakhou/logsift/internal/feedback"
	"github.com/mohammad-safakhou/logsift/internal/oracle"
	"github.com/mohammad-safakhou/logsift/internal/plan"
	"github.com/mohammad-safakhou/logsift/internal/refine"
	"github.com/mohammad-safakhou/logsift/internal/runner"
	"github.com/mohammad-safakhou/logsift/internal/sink"
	"github.com/mohammad-safakhou/logsift/internal/source"
	"github.com/mohammad-safakhou/logsift/internal/store"
	"github.com/mohammad-safakhou/logsift/internal/telemetry"
	"github.com/mohammad-safakhou/logsift/internal/triage"
)

// pipelineFlags are the per-run overrides shared by the commands.
type pipelineFlags struct {
	cfgPath     string
	sourcePath  string
	ticketsMode string
	reportsMode string
	feedbackOff bool
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.cfgPath, "config", "c", "", "config file directory (default is .)")
	cmd.Flags().StringVar(&f.sourcePath, "source", "", "log source file (overrides configured source)")
	cmd.Flags().StringVar(&f.ticketsMode, "tickets", "", "ticket sink mode: mock or real (overrides config)")
	cmd.Flags().StringVar(&f.reportsMode, "reports", "", "report sink mode: mock or real (overrides config)")
	cmd.Flags().BoolVar(&f.feedbackOff, "no-feedback", false, "disable the feedback ledger for this run")
}

func buildPipeline(f *pipelineFlags) (*runner.Pipeline, *config.Config, error) {
	cfg := config.LoadConfig(f.cfgPath)

	tel := telemetry.NewTelemetry(cfg.Telemetry)
	client := newOracleClient(cfg, tel)
	routing := cfg.LLM.Routing

	var src source.Provider
	switch {
	case f.sourcePath != "":
		src = source.NewFileSource(f.sourcePath)
	case cfg.Source.Kind == "index":
		src = source.NewIndexSource(cfg.Source.Index.Path, cfg.Source.Index.Query, cfg.Source.Index.MaxResults)
	default:
		src = source.NewFileSource(cfg.Source.File.Path)
	}

	var artifacts artifact.Store
	if cfg.Storage.Redis.Enabled {
		redisStore, err := artifact.NewRedisStore(context.Background(), cfg.Storage.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis artifact store: %w", err)
		}
		artifacts = redisStore
	} else {
		artifacts = artifact.NewFileStore(cfg.Storage.File.DataDir)
	}

	var ledger *feedback.Ledger
	if cfg.Feedback.Enabled && !f.feedbackOff {
		ledger = feedback.NewLedger(cfg.Feedback.Path)
	}

	ticketsCfg := cfg.Tickets
	if f.ticketsMode != "" {
		ticketsCfg.Mode = f.ticketsMode
	}
	var ticketSink sink.TicketSink
	if ticketsCfg.Mode == "real" {
		ticketSink = sink.NewHTTPTicketSink(ticketsCfg)
	} else {
		ticketSink = sink.NewMockTicketSink()
	}

	reportsCfg := cfg.Reports
	if f.reportsMode != "" {
		reportsCfg.Mode = f.reportsMode
	}
	var reportSink sink.ReportSink
	if reportsCfg.Mode == "real" {
		reportSink = sink.NewHTTPReportSink(reportsCfg)
	} else {
		reportSink = sink.NewMockReportSink()
	}

	var runs *store.RunStore
	if cfg.Storage.Postgres.Configured() {
		var err error
		runs, err = store.NewRunStore(cfg.Storage.Postgres)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: run-history store unavailable: %v\n", err)
			runs = nil
		}
	}

	p := runner.NewPipeline(runner.Deps{
		Config:  cfg,
		Source:  src,
		Refiner: refine.NewRefiner(client, modelFor(routing.Refine, routing), cfg.Pipeline.RefineBatchSize),
		Classifier: triage.NewClassifier(client, modelFor(routing.Triage, routing), triage.ClassifierOptions{
			BatchSize:    cfg.Pipeline.TriageBatchSize,
			TopN:         cfg.Pipeline.TopN,
			ExcerptLines: cfg.Pipeline.StackExcerptLines,
		}),
		Planner:     plan.NewPlanner(client, modelFor(routing.Planning, routing), ledger),
		TicketAgent: agents.NewTicketAgent(client, modelFor(routing.Drafting, routing), cfg.Pipeline.DraftBatchSize),
		FilterAgent: agents.NewFilterAgent(client, modelFor(routing.Drafting, routing), cfg.Pipeline.FilterBatchSize),
		ReportAgent: agents.NewReportAgent(client, modelFor(routing.Drafting, routing)),
		TicketSink:  ticketSink,
		ReportSink:  reportSink,
		Ledger:      ledger,
		Artifacts:   artifacts,
		Telemetry:   tel,
		Runs:        runs,
	})
	return p, cfg, nil
}

func newOracleClient(cfg *config.Config, tel *telemetry.Telemetry) oracle.Client {
	if provider, ok := cfg.LLM.Primary(); ok {
		return oracle.NewOpenAIClient(provider, tel)
	}
	// no provider configured; the client degrades on first call
	return oracle.NewOpenAIClient(config.LLMProvider{}, tel)
}

func modelFor(model string, routing config.LLMRoutingConfig) string {
	if model != "" {
		return model
	}
	return routing.Fallback
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}

func runCMD() *cobra.Command {
	var flags pipelineFlags
	var mode string
	var noReview bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full triage pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := buildPipeline(&flags)
			if err != nil {
				return err
			}

			opts := runner.RunOptions{Mode: mode}
			if !noReview {
				opts.Decide = consoleDecision
			}

			result, err := p.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printJSON(result)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&mode, "mode", runner.ModeOrchestrator, "planning mode: orchestrator or pipeline")
	cmd.Flags().BoolVar(&noReview, "no-review", false, "skip the interactive approval loop")
	return cmd
}

func preprocessCMD() *cobra.Command {
	var flags pipelineFlags
	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Fetch, normalize and cluster logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := buildPipeline(&flags)
			if err != nil {
				return err
			}
			events, clusters, err := p.Preprocess(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("preprocessed %d logs into %d clusters\n", len(events), len(clusters))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func refineCMD() *cobra.Command {
	var flags pipelineFlags
	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Merge clusters that describe the same logical error",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := buildPipeline(&flags)
			if err != nil {
				return err
			}
			count, err := p.RefineStage(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("refined clusters: %d\n", count)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func triageCMD() *cobra.Command {
	var flags pipelineFlags
	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Classify clusters and build the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := buildPipeline(&flags)
			if err != nil {
				return err
			}
			summary, err := p.TriageStage(cmd.Context())
			if err != nil {
				return err
			}
			printJSON(summary)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func ticketsCMD() *cobra.Command {
	var flags pipelineFlags
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Draft tickets for classified clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := buildPipeline(&flags)
			if err != nil {
				return err
			}
			drafts, err := p.TicketsStage(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("drafted %d tickets (%d skipped)\n", drafts.DraftCount, drafts.SkippedCount)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func filtersCMD() *cobra.Command {
	var flags pipelineFlags
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Propose suppression filters for drafted clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := buildPipeline(&flags)
			if err != nil {
				return err
			}
			filters, err := p.FiltersStage(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("proposed %d filters\n", filters.Count)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func reportCMD() *cobra.Command {
	var flags pipelineFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write and publish the session report",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := buildPipeline(&flags)
			if err != nil {
				return err
			}
			report, pageID, err := p.ReportStage(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("report drafted (%d bytes)", report.Length)
			if pageID != "" {
				fmt.Printf(", published to page %s", pageID)
			}
			fmt.Println()
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func reviewCMD() *cobra.Command {
	var flags pipelineFlags
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review ticket drafts interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := buildPipeline(&flags)
			if err != nil {
				return err
			}
			result, err := p.ReviewStage(cmd.Context(), consoleDecision)
			if err != nil {
				return err
			}
			fmt.Printf("reviewed=%d feedback=%d submitted=%d\n",
				result.Reviewed, result.Written, result.Submitted)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func historyCMD() *cobra.Command {
	var flags pipelineFlags
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the run-history store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(flags.cfgPath)
			if !cfg.Storage.Postgres.Configured() {
				return fmt.Errorf("run-history store not configured (storage.postgres)")
			}
			runs, err := store.NewRunStore(cfg.Storage.Postgres)
			if err != nil {
				return err
			}
			defer runs.Close()

			records, err := runs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printJSON(records)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	return cmd
}

func migrateCMD() *cobra.Command {
	var cfgPath string
	var migDir string
	var direction string
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run run-history store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if !cfg.Storage.Postgres.Configured() {
				return fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
			}
			return store.Migrate(migDir, cfg.Storage.Postgres.DSN(), direction, steps)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file directory (default is .)")
	cmd.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	cmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}
