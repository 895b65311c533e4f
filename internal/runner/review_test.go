package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mohammad-safakhou/logsift/internal/agents"
	"github.com/mohammad-safakhou/logsift/internal/feedback"
	"github.com/mohammad-safakhou/logsift/internal/triage"
)

type stubTicketSink struct {
	submitted []string
	err       error
}

func (s *stubTicketSink) Submit(_ context.Context, summary, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.submitted = append(s.submitted, summary)
	return fmt.Sprintf("LOG-%d", len(s.submitted)), nil
}

func reviewDrafts(n int) []agents.TicketDraft {
	out := make([]agents.TicketDraft, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, agents.TicketDraft{
			Idx:         i,
			Fingerprint: fmt.Sprintf("fp-%d", i),
			Component:   "svc.Comp",
			Message:     fmt.Sprintf("failure %d", i),
			Triage:      triage.Classification{Label: triage.LabelInternalError, Priority: triage.PriorityHigh},
			Ticket:      agents.TicketBody{Summary: fmt.Sprintf("Failure %d", i)},
		})
	}
	return out
}

// script returns a DecisionFunc that replays the given verdicts in order.
func script(decisions []Decision, reasons []string) DecisionFunc {
	i := 0
	return func(agents.TicketDraft) (Decision, string) {
		d := decisions[i]
		reason := ""
		if i < len(reasons) {
			reason = reasons[i]
		}
		i++
		return d, reason
	}
}

func TestReviewApproveRejectSkipAll(t *testing.T) {
	ledger := feedback.NewLedger(filepath.Join(t.TempDir(), "feedback.json"))
	ticketSink := &stubTicketSink{}
	p := NewPipeline(Deps{Ledger: ledger, TicketSink: ticketSink})

	decide := script(
		[]Decision{DecisionApprove, DecisionReject, DecisionSkipAll},
		[]string{"real bug", "duplicate", ""},
	)
	result := p.Review(context.Background(), reviewDrafts(3), decide)

	if result.Reviewed != 2 || result.Written != 2 || result.Submitted != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(result.TicketIDs) != 1 || result.TicketIDs[0] != "LOG-1" {
		t.Fatalf("unexpected ticket ids: %v", result.TicketIDs)
	}
	if len(ticketSink.submitted) != 1 || ticketSink.submitted[0] != "Failure 0" {
		t.Fatalf("only the approved draft may be submitted: %v", ticketSink.submitted)
	}

	entries := ledger.Load()
	if len(entries) != 2 {
		t.Fatalf("expected one feedback entry per verdict, got %d", len(entries))
	}
	if entries[0].Decision != feedback.DecisionApproved || entries[0].Fingerprint != "fp-0" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Decision != feedback.DecisionRejected || entries[1].Reason != "duplicate" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestReviewSkipLeavesNoTrace(t *testing.T) {
	ledger := feedback.NewLedger(filepath.Join(t.TempDir(), "feedback.json"))
	ticketSink := &stubTicketSink{}
	p := NewPipeline(Deps{Ledger: ledger, TicketSink: ticketSink})

	decide := script([]Decision{DecisionSkip, DecisionApprove}, nil)
	result := p.Review(context.Background(), reviewDrafts(2), decide)

	if result.Reviewed != 1 || result.Written != 1 || result.Submitted != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if entries := ledger.Load(); len(entries) != 1 || entries[0].Fingerprint != "fp-1" {
		t.Fatalf("skipped draft must not write feedback: %+v", entries)
	}
}

func TestReviewSubmitFailureKeepsFeedback(t *testing.T) {
	ledger := feedback.NewLedger(filepath.Join(t.TempDir(), "feedback.json"))
	p := NewPipeline(Deps{Ledger: ledger, TicketSink: &stubTicketSink{err: errors.New("tracker down")}})

	decide := script([]Decision{DecisionApprove}, []string{"ship it"})
	result := p.Review(context.Background(), reviewDrafts(1), decide)

	if result.Submitted != 0 {
		t.Fatalf("failed submission must not count: %+v", result)
	}
	if result.Written != 1 {
		t.Fatalf("feedback must be recorded before submission: %+v", result)
	}
}

func TestReviewWithoutLedgerStillSubmits(t *testing.T) {
	ticketSink := &stubTicketSink{}
	p := NewPipeline(Deps{TicketSink: ticketSink})

	decide := script([]Decision{DecisionApprove}, nil)
	result := p.Review(context.Background(), reviewDrafts(1), decide)

	if result.Written != 0 || result.Submitted != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
}
