package runner

import (
	"context"

	"github.com/mohammad-safakhou/logsift/internal/agents"
	"github.com/mohammad-safakhou/logsift/internal/feedback"
)

// Decision is the reviewer's verdict on one ticket draft.
type Decision int

const (
	DecisionApprove Decision = iota
	DecisionReject
	DecisionSkip
	DecisionSkipAll
)

// DecisionFunc presents one draft and returns a decision plus an optional
// free-text reason. Modeling the console prompt as a callback lets tests
// script a decision sequence.
type DecisionFunc func(draft agents.TicketDraft) (Decision, string)

// ReviewResult summarizes one approval session.
type ReviewResult struct {
	Reviewed  int      `json:"reviewed"`
	Written   int      `json:"written_feedback"`
	Submitted int      `json:"submitted"`
	TicketIDs []string `json:"ticket_ids,omitempty"`
}

// Review walks drafts in order. Approve and reject each append exactly one
// feedback entry; skip-all ends the session immediately without consuming
// the remaining drafts. Only approved drafts are submitted to the ticket
// sink. This is the only place feedback is ever written.
func (p *Pipeline) Review(ctx context.Context, drafts []agents.TicketDraft, decide DecisionFunc) ReviewResult {
	var result ReviewResult

loop:
	for _, draft := range drafts {
		decision, reason := decide(draft)

		switch decision {
		case DecisionSkipAll:
			break loop
		case DecisionSkip:
			continue
		case DecisionApprove, DecisionReject:
		default:
			p.logger.Printf("invalid decision for draft idx=%d, skipping", draft.Idx)
			continue
		}

		result.Reviewed++

		verdict := feedback.DecisionApproved
		if decision == DecisionReject {
			verdict = feedback.DecisionRejected
		}

		if p.ledger != nil {
			if err := p.ledger.Append(feedback.NewEntry(draft.Item(), verdict, reason)); err != nil {
				p.logger.Printf("feedback write failed for %s: %v", draft.Fingerprint, err)
			} else {
				result.Written++
			}
		}

		if decision == DecisionApprove {
			key, err := p.ticketSink.Submit(ctx, draft.Ticket.Summary, draft.Ticket.IssueDescription)
			if err != nil {
				p.logger.Printf("ticket submission failed for %s: %v", draft.Fingerprint, err)
				continue
			}
			result.Submitted++
			if key != "" {
				result.TicketIDs = append(result.TicketIDs, key)
			}
		}
	}

	p.logger.Printf("review session finished: reviewed=%d, feedback=%d, submitted=%d",
		result.Reviewed, result.Written, result.Submitted)
	return result
}
