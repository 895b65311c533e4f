package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/mohammad-safakhou/logsift/config"
	"github.com/mohammad-safakhou/logsift/internal/agents"
	"github.com/mohammad-safakhou/logsift/internal/artifact"
	"github.com/mohammad-safakhou/logsift/internal/plan"
	"github.com/mohammad-safakhou/logsift/internal/refine"
	"github.com/mohammad-safakhou/logsift/internal/sink"
	"github.com/mohammad-safakhou/logsift/internal/telemetry"
	"github.com/mohammad-safakhou/logsift/internal/triage"
)

type staticSource struct {
	records []map[string]interface{}
	err     error
}

func (s *staticSource) Fetch(_ context.Context) ([]map[string]interface{}, error) {
	return s.records, s.err
}

// failingOracle degrades every stage that uses it.
type failingOracle struct{}

func (failingOracle) Complete(_ context.Context, _, _ string) (string, error) {
	return "", errors.New("oracle down")
}

func testDeps(t *testing.T, src *staticSource) Deps {
	t.Helper()
	ora := failingOracle{}
	return Deps{
		Config:      &config.Config{},
		Source:      src,
		Refiner:     refine.NewRefiner(ora, "m", 0),
		Classifier:  triage.NewClassifier(ora, "m", triage.ClassifierOptions{}),
		Planner:     plan.NewPlanner(ora, "m", nil),
		TicketAgent: agents.NewTicketAgent(ora, "m", 0),
		FilterAgent: agents.NewFilterAgent(ora, "m", 0),
		ReportAgent: agents.NewReportAgent(ora, "m"),
		TicketSink:  sink.NewMockTicketSink(),
		ReportSink:  sink.NewMockReportSink(),
		Artifacts:   artifact.NewFileStore(t.TempDir()),
		Telemetry:   telemetry.NewTelemetry(config.TelemetryConfig{}),
	}
}

func sourceRecords() []map[string]interface{} {
	return []map[string]interface{}{
		{"timestamp": "2026-01-01T10:00:00Z", "service": "checkout", "component": "billing.Invoice", "message": "failed to render invoice 12"},
		{"timestamp": "2026-01-01T10:01:00Z", "service": "checkout", "component": "billing.Invoice", "message": "failed to render invoice 12"},
		{"timestamp": "2026-01-01T10:02:00Z", "service": "auth", "component": "auth.Token", "message": "token expired"},
	}
}

func TestRunEmptySourceStopsEarly(t *testing.T) {
	deps := testDeps(t, &staticSource{})
	p := NewPipeline(deps)

	result, err := p.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Stopped != "no_logs" {
		t.Fatalf("expected no_logs stop, got %q", result.Stopped)
	}
	if result.LogCount != 0 || result.Summary != nil || result.Plan != nil {
		t.Fatalf("short-circuited run must not carry stage output: %+v", result)
	}
	if result.Meta.StartTime == "" || result.Meta.EndTime == "" {
		t.Fatalf("meta timing missing: %+v", result.Meta)
	}

	// even a stopped run leaves its result artifact behind
	var saved RunResult
	if err := deps.Artifacts.Load(context.Background(), artifact.StageRunResult, &saved); err != nil {
		t.Fatalf("load run result: %v", err)
	}
	if saved.Stopped != "no_logs" {
		t.Fatalf("persisted result differs: %+v", saved)
	}
}

func TestRunSourceErrorPropagates(t *testing.T) {
	p := NewPipeline(testDeps(t, &staticSource{err: errors.New("index unreachable")}))
	if _, err := p.Run(context.Background(), RunOptions{}); err == nil {
		t.Fatalf("expected fetch error")
	}
}

func TestRunPipelineModeDegradesGracefully(t *testing.T) {
	deps := testDeps(t, &staticSource{records: sourceRecords()})
	p := NewPipeline(deps)

	result, err := p.Run(context.Background(), RunOptions{Mode: ModePipeline})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Stopped != "" {
		t.Fatalf("unexpected stop: %q", result.Stopped)
	}
	if result.LogCount != 3 || result.ClusterCount != 2 {
		t.Fatalf("unexpected counts: %d logs, %d clusters", result.LogCount, result.ClusterCount)
	}

	// every cluster degrades to unclassified, so no internal-high tickets
	if result.Summary == nil || result.Summary.InternalHighCount != 0 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if result.Plan == nil {
		t.Fatalf("plan missing")
	}
	tickets, _ := result.Plan.Find(plan.AgentTicketDrafts)
	if tickets.Run {
		t.Fatalf("tickets must not run without internal-high clusters")
	}
	filters, _ := result.Plan.Find(plan.AgentFilterSuggestions)
	if !filters.Run {
		t.Fatalf("filters must run for a triaged batch")
	}

	if result.Results.TicketDrafts != nil {
		t.Fatalf("ticket agent must not have run")
	}
	if result.Results.FilterSuggestions == nil || result.Results.FilterSuggestions.Count != 0 {
		t.Fatalf("filter agent must run and produce nothing: %+v", result.Results.FilterSuggestions)
	}
	if result.Results.ReportDraft == nil || result.Results.ReportDraft.Markdown == "" {
		t.Fatalf("report must fall back to a placeholder: %+v", result.Results.ReportDraft)
	}

	var triaged triagedDoc
	if err := deps.Artifacts.Load(context.Background(), artifact.StageTriaged, &triaged); err != nil {
		t.Fatalf("load triaged artifact: %v", err)
	}
	if len(triaged.Items) != 2 {
		t.Fatalf("expected 2 triaged items, got %d", len(triaged.Items))
	}
	for _, it := range triaged.Items {
		if !it.Triage.Unclassified() {
			t.Fatalf("degraded run must leave items unclassified: %+v", it.Triage)
		}
	}
}

func TestRunOrchestratorModeDefaultsToNoActions(t *testing.T) {
	deps := testDeps(t, &staticSource{records: sourceRecords()})
	p := NewPipeline(deps)

	result, err := p.Run(context.Background(), RunOptions{Mode: ModeOrchestrator})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Plan == nil || len(result.Plan.Actions) == 0 {
		t.Fatalf("expected substituted default plan")
	}
	for _, a := range result.Plan.Actions {
		if a.Run {
			t.Fatalf("degraded policy oracle must plan no actions: %+v", a)
		}
	}
	if result.Results.TicketDrafts != nil || result.Results.ReportDraft != nil {
		t.Fatalf("no agent may run under the default plan: %+v", result.Results)
	}
	if result.Review != nil {
		t.Fatalf("review must not run without drafts")
	}
}
