package plan

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mohammad-safakhou/logsift/internal/feedback"
	"github.com/mohammad-safakhou/logsift/internal/triage"
)

type stubOracle struct {
	response string
	err      error
	prompt   string
}

func (s *stubOracle) Complete(ctx context.Context, model, prompt string) (string, error) {
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestFallbackTicketGate(t *testing.T) {
	p := Fallback(triage.Summary{TriagedClusterCount: 4, InternalHighCount: 2})
	tickets, ok := p.Find(AgentTicketDrafts)
	if !ok || !tickets.Run {
		t.Fatalf("expected tickets to run with internal-high clusters: %+v", tickets)
	}
	report, _ := p.Find(AgentReportDraft)
	if !report.Run {
		t.Fatalf("report must run when tickets run")
	}

	p = Fallback(triage.Summary{TriagedClusterCount: 4})
	tickets, _ = p.Find(AgentTicketDrafts)
	if tickets.Run {
		t.Fatalf("tickets must not run without high-priority internal errors")
	}
	filters, _ := p.Find(AgentFilterSuggestions)
	if !filters.Run {
		t.Fatalf("filters must run when anything was triaged")
	}
}

func TestFallbackEmptySummaryRunsNothing(t *testing.T) {
	p := Fallback(triage.Summary{})
	for _, agent := range []string{AgentTicketDrafts, AgentFilterSuggestions, AgentReportDraft} {
		a, ok := p.Find(agent)
		if !ok {
			t.Fatalf("missing action for %s", agent)
		}
		if a.Run {
			t.Fatalf("%s must not run on an empty summary", agent)
		}
	}
}

func TestFallbackIsDeterministic(t *testing.T) {
	s := triage.Summary{
		TriagedClusterCount: 3,
		InternalHighCount:   1,
		ByLabel:             map[string]int{triage.LabelNoise: 2},
	}
	a, _ := json.Marshal(Fallback(s))
	b, _ := json.Marshal(Fallback(s))
	if string(a) != string(b) {
		t.Fatalf("fallback plan differs between calls:\n%s\n%s", a, b)
	}
}

func TestNormalizeActionsDropsUnknownAgents(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"agent":"TicketDrafts","run":true,"max_tickets":3}`),
		json.RawMessage(`{"agent":"DeployBot","run":true}`),
		json.RawMessage(`{"agent":"FilterSuggestions"}`),
		json.RawMessage(`"garbage"`),
	}

	actions := normalizeActions(raw)
	if len(actions) != 2 {
		t.Fatalf("expected 2 normalized actions, got %d", len(actions))
	}
	if actions[0].Agent != AgentTicketDrafts || !actions[0].Run {
		t.Fatalf("unexpected first action: %+v", actions[0])
	}
	if actions[0].MaxTickets == nil || *actions[0].MaxTickets != 3 {
		t.Fatalf("max_tickets not carried: %+v", actions[0])
	}
	// missing run flag defaults to false, missing labels get defaults
	if actions[1].Run {
		t.Fatalf("missing run flag must default to false")
	}
	if len(actions[1].ForLabels) != 3 {
		t.Fatalf("expected default labels, got %v", actions[1].ForLabels)
	}
}

func TestPlanNormalizesOracleAnswer(t *testing.T) {
	oracle := &stubOracle{response: `{
		"actions":[
			{"agent":"TicketDrafts","run":true,"min_severity":"medium"},
			{"agent":"ReportDraft","run":true}
		],
		"global_policy":{"ticket_strategy":"conservative","noise_handling":"none"},
		"reason":"high internal errors"
	}`}
	p := NewPlanner(oracle, "m", nil)

	out := p.Plan(context.Background(), triage.Summary{}, nil)
	if len(out.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(out.Actions))
	}
	if out.GlobalPolicy.TicketStrategy != "conservative" || out.Reason != "high internal errors" {
		t.Fatalf("policy/reason not carried: %+v", out)
	}
	tickets, _ := out.Find(AgentTicketDrafts)
	if tickets.MinSeverity == nil || *tickets.MinSeverity != "medium" {
		t.Fatalf("min_severity not carried: %+v", tickets)
	}
}

func TestPlanDefaultsOnOracleFailure(t *testing.T) {
	p := NewPlanner(&stubOracle{err: errors.New("down")}, "m", nil)

	out := p.Plan(context.Background(), triage.Summary{InternalHighCount: 5}, nil)
	for _, a := range out.Actions {
		if a.Run {
			t.Fatalf("default plan must run nothing: %+v", a)
		}
	}
	if out.Reason == "" {
		t.Fatalf("default plan must explain itself")
	}
}

func TestPlanDefaultsOnUnusableResponse(t *testing.T) {
	p := NewPlanner(&stubOracle{response: "sorry, I cannot help with that"}, "m", nil)
	out := p.Plan(context.Background(), triage.Summary{}, nil)
	if len(out.Actions) != 3 {
		t.Fatalf("expected full default plan, got %d actions", len(out.Actions))
	}
	for _, a := range out.Actions {
		if a.Run {
			t.Fatalf("default plan must run nothing")
		}
	}
}

func TestAnnotatedViewsAttachLatestFeedback(t *testing.T) {
	ledger := feedback.NewLedger(filepath.Join(t.TempDir(), "feedback.json"))
	item := triage.Item{
		Idx:         0,
		Fingerprint: "fp-reviewed",
		Component:   "auth.Token",
		Message:     "token expired",
		Triage:      triage.Classification{Label: triage.LabelInternalError, Priority: triage.PriorityHigh},
	}
	if err := ledger.Append(feedback.NewEntry(item, feedback.DecisionApproved, "")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := ledger.Append(feedback.NewEntry(item, feedback.DecisionRejected, "dup")); err != nil {
		t.Fatalf("append: %v", err)
	}

	p := NewPlanner(&stubOracle{}, "m", ledger)
	views := p.AnnotatedViews([]triage.Item{
		item,
		{Idx: 1, Fingerprint: "fp-fresh", Message: "new failure"},
	})

	if views[0].Feedback == nil || views[0].Feedback.Decision != feedback.DecisionRejected {
		t.Fatalf("expected newest feedback on reviewed cluster: %+v", views[0].Feedback)
	}
	if views[0].Feedback.Reason != "dup" {
		t.Fatalf("feedback reason not carried: %+v", views[0].Feedback)
	}
	if views[1].Feedback != nil {
		t.Fatalf("unreviewed cluster must carry no feedback")
	}
}

func TestAnnotatedViewsWithoutLedger(t *testing.T) {
	p := NewPlanner(&stubOracle{}, "m", nil)
	views := p.AnnotatedViews([]triage.Item{{Idx: 0, Fingerprint: "fp"}})
	if len(views) != 1 || views[0].Feedback != nil {
		t.Fatalf("nil ledger must annotate nothing: %+v", views)
	}
}
