package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/logsift/config"
	"github.com/mohammad-safakhou/logsift/internal/agents"
	"github.com/mohammad-safakhou/logsift/internal/artifact"
	"github.com/mohammad-safakhou/logsift/internal/cluster"
	"github.com/mohammad-safakhou/logsift/internal/feedback"
	"github.com/mohammad-safakhou/logsift/internal/logevent"
	"github.com/mohammad-safakhou/logsift/internal/plan"
	"github.com/mohammad-safakhou/logsift/internal/refine"
	"github.com/mohammad-safakhou/logsift/internal/sink"
	"github.com/mohammad-safakhou/logsift/internal/source"
	"github.com/mohammad-safakhou/logsift/internal/store"
	"github.com/mohammad-safakhou/logsift/internal/telemetry"
	"github.com/mohammad-safakhou/logsift/internal/triage"
)

// Planning modes.
const (
	ModeOrchestrator = "orchestrator"
	ModePipeline     = "pipeline"
)

// Meta carries timing and usage for one run.
type Meta struct {
	Mode            string          `json:"mode"`
	Date            string          `json:"date"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	DurationSeconds float64         `json:"duration_seconds"`
	Usage           telemetry.Usage `json:"usage"`
}

// Results holds the per-agent outputs of one executed plan.
type Results struct {
	TicketDrafts      *agents.TicketDrafts      `json:"ticket_drafts,omitempty"`
	FilterSuggestions *agents.FilterSuggestions `json:"filter_suggestions,omitempty"`
	ReportDraft       *agents.ReportDraft       `json:"report_draft,omitempty"`
	ReportPageID      string                    `json:"report_page_id,omitempty"`
}

// RunResult is the write-once record of one pipeline run. Every run
// produces one, including degraded and short-circuited runs.
type RunResult struct {
	Meta         Meta              `json:"meta"`
	Stopped      string            `json:"stopped,omitempty"`
	LogCount     int               `json:"log_count"`
	ClusterCount int               `json:"cluster_count"`
	Summary      *triage.Summary   `json:"summary,omitempty"`
	Plan         *plan.Plan        `json:"plan,omitempty"`
	Results      Results           `json:"results"`
	Errors       map[string]string `json:"errors,omitempty"`
	Review       *ReviewResult     `json:"review,omitempty"`
}

// Artifact document shapes. These are the cross-run compatibility
// contract; the storage medium behind them is not.
type rawLogsDoc struct {
	Count int              `json:"count"`
	Items []logevent.Event `json:"items"`
}

type clustersDoc struct {
	ClusterCount int               `json:"cluster_count"`
	LogCount     int               `json:"log_count"`
	Clusters     []cluster.Cluster `json:"clusters"`
}

type triagedDoc struct {
	Items []triage.Item `json:"items"`
}

// Pipeline owns one run of the triage flow and the stage commands.
type Pipeline struct {
	cfg         *config.Config
	source      source.Provider
	refiner     *refine.Refiner
	classifier  *triage.Classifier
	planner     *plan.Planner
	ticketAgent *agents.TicketAgent
	filterAgent *agents.FilterAgent
	reportAgent *agents.ReportAgent
	ticketSink  sink.TicketSink
	reportSink  sink.ReportSink
	ledger      *feedback.Ledger
	artifacts   artifact.Store
	telemetry   *telemetry.Telemetry
	runs        *store.RunStore
	logger      *log.Logger
}

// Deps wires a pipeline. runs may be nil when no run-history store is
// configured; ledger may be nil when feedback is disabled.
type Deps struct {
	Config      *config.Config
	Source      source.Provider
	Refiner     *refine.Refiner
	Classifier  *triage.Classifier
	Planner     *plan.Planner
	TicketAgent *agents.TicketAgent
	FilterAgent *agents.FilterAgent
	ReportAgent *agents.ReportAgent
	TicketSink  sink.TicketSink
	ReportSink  sink.ReportSink
	Ledger      *feedback.Ledger
	Artifacts   artifact.Store
	Telemetry   *telemetry.Telemetry
	Runs        *store.RunStore
}

// NewPipeline assembles the executor from its collaborators.
func NewPipeline(deps Deps) *Pipeline {
	return &Pipeline{
		cfg:         deps.Config,
		source:      deps.Source,
		refiner:     deps.Refiner,
		classifier:  deps.Classifier,
		planner:     deps.Planner,
		ticketAgent: deps.TicketAgent,
		filterAgent: deps.FilterAgent,
		reportAgent: deps.ReportAgent,
		ticketSink:  deps.TicketSink,
		reportSink:  deps.ReportSink,
		ledger:      deps.Ledger,
		artifacts:   deps.Artifacts,
		telemetry:   deps.Telemetry,
		runs:        deps.Runs,
		logger:      log.New(log.Writer(), "[RUNNER] ", log.LstdFlags),
	}
}

// RunOptions select planning strategy and the review behavior for one run.
type RunOptions struct {
	Mode   string       // orchestrator or pipeline
	Decide DecisionFunc // nil skips the approval loop
}

// Run executes the full flow: preprocess, refine, classify, summarize,
// plan, execute, review. It always returns a result; errors inside agent
// dispatch are collected per agent rather than propagated.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	if opts.Mode == "" {
		opts.Mode = ModeOrchestrator
	}
	p.telemetry.Reset()
	start := time.Now()

	result := RunResult{
		Meta: Meta{
			Mode:      opts.Mode,
			Date:      start.UTC().Format("2006-01-02"),
			StartTime: start.UTC().Format(time.RFC3339),
		},
		Errors: map[string]string{},
	}

	p.logger.Printf("step 1: preprocessing logs")
	events, clusters, err := p.Preprocess(ctx)
	if err != nil {
		return result, err
	}
	result.LogCount = len(events)

	if len(events) == 0 {
		p.logger.Printf("no logs found, stopping early")
		result.Stopped = "no_logs"
		p.finish(ctx, &result, start)
		return result, nil
	}

	p.logger.Printf("step 2: refining %d clusters", len(clusters))
	stageStart := time.Now()
	refined := p.refiner.Refine(ctx, clusters)
	p.telemetry.ObserveStage("refine", time.Since(stageStart))
	result.ClusterCount = len(refined)
	p.saveStage(ctx, artifact.StageClustersRefined, clustersDoc{
		ClusterCount: len(refined), LogCount: len(events), Clusters: refined,
	}, result.Errors)

	p.logger.Printf("step 3: classifying %d clusters", len(refined))
	stageStart = time.Now()
	items := p.classifier.Classify(ctx, refined)
	p.telemetry.ObserveStage("triage", time.Since(stageStart))
	p.saveStage(ctx, artifact.StageTriaged, triagedDoc{Items: items}, result.Errors)

	p.logger.Printf("step 4: building summary")
	summary := triage.Summarize(items, len(events))
	result.Summary = &summary
	p.saveStage(ctx, artifact.StageSummary, summary, result.Errors)

	p.logger.Printf("step 5: planning (mode=%s)", opts.Mode)
	var runPlan plan.Plan
	if opts.Mode == ModePipeline {
		runPlan = plan.Fallback(summary)
	} else {
		stageStart = time.Now()
		runPlan = p.planner.Plan(ctx, summary, items)
		p.telemetry.ObserveStage("plan", time.Since(stageStart))
	}
	result.Plan = &runPlan
	p.saveStage(ctx, artifact.StagePlan, runPlan, result.Errors)

	p.logger.Printf("step 6: executing plan")
	p.executeActions(ctx, runPlan, items, &result)

	if opts.Decide != nil && result.Results.TicketDrafts != nil && len(result.Results.TicketDrafts.Drafts) > 0 {
		p.logger.Printf("step 7: reviewing %d ticket drafts", len(result.Results.TicketDrafts.Drafts))
		review := p.Review(ctx, result.Results.TicketDrafts.Drafts, opts.Decide)
		result.Review = &review
	}

	p.finish(ctx, &result, start)
	return result, nil
}

// executeActions walks the plan in order. Skipped actions are logged, not
// failed; one agent's error never prevents the next action from running.
func (p *Pipeline) executeActions(ctx context.Context, runPlan plan.Plan, items []triage.Item, result *RunResult) {
	for _, action := range runPlan.Actions {
		if !action.Run {
			p.logger.Printf("skipping %s as per plan", action.Agent)
			continue
		}

		switch action.Agent {
		case plan.AgentTicketDrafts:
			p.logger.Printf("running ticket drafting agent")
			stageStart := time.Now()
			drafts := p.ticketAgent.Draft(ctx, items, action)
			p.telemetry.ObserveStage("tickets", time.Since(stageStart))
			result.Results.TicketDrafts = &drafts
			p.saveStage(ctx, artifact.StageTicketDrafts, drafts, result.Errors)

		case plan.AgentFilterSuggestions:
			p.logger.Printf("running filter suggestion agent")
			var drafts []agents.TicketDraft
			if result.Results.TicketDrafts != nil {
				drafts = result.Results.TicketDrafts.Drafts
			}
			stageStart := time.Now()
			filters := p.filterAgent.Suggest(ctx, drafts)
			p.telemetry.ObserveStage("filters", time.Since(stageStart))
			result.Results.FilterSuggestions = &filters
			p.saveStage(ctx, artifact.StageFilterSuggestions, filters, result.Errors)

		case plan.AgentReportDraft:
			p.logger.Printf("running report drafting agent")
			var drafts agents.TicketDrafts
			if result.Results.TicketDrafts != nil {
				drafts = *result.Results.TicketDrafts
			}
			var filters agents.FilterSuggestions
			if result.Results.FilterSuggestions != nil {
				filters = *result.Results.FilterSuggestions
			}
			stageStart := time.Now()
			report := p.reportAgent.Draft(ctx, drafts, filters, action.IncludeSections)
			p.telemetry.ObserveStage("report", time.Since(stageStart))
			result.Results.ReportDraft = &report
			p.saveStage(ctx, artifact.StageReportDraft, report, result.Errors)

			pageID, err := p.reportSink.Publish(ctx, report.Markdown)
			if err != nil {
				p.logger.Printf("report publish failed: %v", err)
				result.Errors[plan.AgentReportDraft] = err.Error()
				continue
			}
			result.Results.ReportPageID = pageID

		default:
			p.logger.Printf("unknown agent in plan: %s", action.Agent)
			result.Errors[action.Agent] = "unknown agent"
		}
	}
}

// finish stamps timings, persists the run result artifact and, when a
// run-history store is wired, records the run there too.
func (p *Pipeline) finish(ctx context.Context, result *RunResult, start time.Time) {
	end := time.Now()
	result.Meta.EndTime = end.UTC().Format(time.RFC3339)
	result.Meta.DurationSeconds = end.Sub(start).Seconds()
	result.Meta.Usage = p.telemetry.Snapshot()
	if len(result.Errors) == 0 {
		result.Errors = nil
	}

	p.saveStage(ctx, artifact.StageRunResult, *result, result.Errors)

	if p.runs != nil {
		rec := store.RunRecord{
			Mode:         result.Meta.Mode,
			Stopped:      result.Stopped,
			StartedAt:    start,
			FinishedAt:   end,
			LogCount:     result.LogCount,
			ClusterCount: result.ClusterCount,
		}
		rec.Summary = marshalOrNil(result.Summary)
		rec.Plan = marshalOrNil(result.Plan)
		rec.Usage = marshalOrNil(result.Meta.Usage)
		rec.Errors = marshalOrNil(result.Errors)
		if _, err := p.runs.SaveRun(ctx, rec); err != nil {
			p.logger.Printf("run history save failed: %v", err)
		}
	}

	p.logger.Printf("run finished in %.1fs (%d logs, %d clusters)",
		result.Meta.DurationSeconds, result.LogCount, result.ClusterCount)
}

func (p *Pipeline) saveStage(ctx context.Context, stage string, v interface{}, errs map[string]string) {
	if err := p.artifacts.Save(ctx, stage, v); err != nil {
		p.logger.Printf("save %s failed: %v", stage, err)
		if errs != nil {
			errs["artifact:"+stage] = err.Error()
		}
	}
}

func marshalOrNil(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// Preprocess fetches raw records, normalizes them and builds clusters,
// persisting both artifacts. An empty fetch is not an error.
func (p *Pipeline) Preprocess(ctx context.Context) ([]logevent.Event, []cluster.Cluster, error) {
	records, err := p.source.Fetch(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch logs: %w", err)
	}

	events := logevent.NormalizeAll(records)
	p.saveStage(ctx, artifact.StageRawLogs, rawLogsDoc{Count: len(events), Items: events}, nil)

	if len(events) == 0 {
		return nil, nil, nil
	}

	clusters := cluster.Build(events)
	p.saveStage(ctx, artifact.StageClusters, clustersDoc{
		ClusterCount: len(clusters), LogCount: len(events), Clusters: clusters,
	}, nil)

	p.logger.Printf("preprocessed %d logs into %d clusters", len(events), len(clusters))
	return events, clusters, nil
}
