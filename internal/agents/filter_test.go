package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/mohammad-safakhou/logsift/internal/triage"
)

func draftFor(idx int, fingerprint, message string) TicketDraft {
	return TicketDraft{
		Idx:         idx,
		Fingerprint: fingerprint,
		Component:   "svc.Comp",
		Message:     message,
		Triage:      triage.Classification{Label: triage.LabelNoise, Priority: triage.PriorityLow},
	}
}

func TestSuggestJoinsFingerprints(t *testing.T) {
	oracle := &stubOracle{response: `{"items":[
		{"idx":1,"filter_clause":{"match_phrase":{"log":"token expired"}}},
		{"idx":1,"filter_clause":{"match_phrase":{"log":"duplicate"}}},
		{"idx":7,"filter_clause":{"match_phrase":{"log":"unknown idx is still kept"}}}
	]}`}
	agent := NewFilterAgent(oracle, "m", 0)

	out := agent.Suggest(context.Background(), []TicketDraft{
		draftFor(0, "fp-0", "boom"),
		draftFor(1, "fp-1", "token expired"),
	})

	if out.Count != 2 {
		t.Fatalf("expected 2 suggestions after dedup, got %d", out.Count)
	}
	if out.Suggestions[0].Idx != 1 || out.Suggestions[0].Fingerprint != "fp-1" {
		t.Fatalf("fingerprint not joined: %+v", out.Suggestions[0])
	}
	if len(out.Suggestions[0].Clause) == 0 {
		t.Fatalf("clause must be carried verbatim")
	}
}

func TestSuggestNoDraftsSkipsOracle(t *testing.T) {
	oracle := &stubOracle{}
	agent := NewFilterAgent(oracle, "m", 0)
	out := agent.Suggest(context.Background(), nil)
	if oracle.calls != 0 || out.Count != 0 {
		t.Fatalf("expected no calls and no suggestions: %+v", out)
	}
}

func TestSuggestFailedBatchContributesNothing(t *testing.T) {
	agent := NewFilterAgent(&stubOracle{err: errors.New("down")}, "m", 0)
	out := agent.Suggest(context.Background(), []TicketDraft{draftFor(0, "fp", "boom")})
	if out.Count != 0 || len(out.Suggestions) != 0 {
		t.Fatalf("expected empty result, got %+v", out)
	}
}

func TestReportDraftFallsBackOnFailure(t *testing.T) {
	agent := NewReportAgent(&stubOracle{err: errors.New("down")}, "m")
	out := agent.Draft(context.Background(), TicketDrafts{}, FilterSuggestions{}, nil)
	if out.Markdown == "" || out.Length != len(out.Markdown) {
		t.Fatalf("expected placeholder report: %+v", out)
	}
}

func TestReportDraftUsesOracleMarkdown(t *testing.T) {
	agent := NewReportAgent(&stubOracle{response: `{"markdown":"| svc | err |\n|---|---|"}`}, "m")
	out := agent.Draft(context.Background(), TicketDrafts{}, FilterSuggestions{}, []string{"summary"})
	if out.Markdown != "| svc | err |\n|---|---|" {
		t.Fatalf("markdown not carried: %q", out.Markdown)
	}
}
