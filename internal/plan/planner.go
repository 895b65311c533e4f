package plan

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/mohammad-safakhou/logsift/internal/feedback"
	"github.com/mohammad-safakhou/logsift/internal/oracle"
	"github.com/mohammad-safakhou/logsift/internal/triage"
)

const planSystemPrompt = `You are an orchestration planner for a multi-agent log review system.

Available agents:
- TicketDrafts: generates bug ticket drafts from important log clusters.
- FilterSuggestions: generates generalized search filters for noisy or non-actionable logs.
- ReportDraft: generates a markdown summary of the log review session.

You MUST respond with ONLY a single valid JSON object. No markdown, no backticks, no comments.

Your job:
- Read the summary of the triaged log clusters and the per-cluster detail.
- Decide which agents to run this time.
- For each agent, optionally specify parameters (e.g. limits, thresholds).
- Explain your reasoning briefly.

Guidelines:
- TicketDrafts should run only if there are enough high-priority internal errors to justify developer attention.
- FilterSuggestions should run when there is a significant amount of noise, timeouts, or external_service errors.
- ReportDraft should run when something meaningful happened (e.g. tickets proposed, new filters suggested), not on empty or trivial runs.
- Prefer conservative ticket creation (avoid spamming the tracker for low-impact or low-confidence issues).
- Clusters carrying a "feedback" field have already been reviewed by a human; do not propose tickets again for clusters whose feedback decision is "rejected".
- Use the numeric summary fields and label/priority distributions to decide.

Return JSON with this exact schema:
{
  "actions": [
    {
      "agent": "TicketDrafts",
      "run": true or false,
      "max_tickets": <int or null>,
      "min_severity": "low"|"medium"|"high"|null,
      "min_confidence": <float between 0 and 1 or null>
    },
    {
      "agent": "FilterSuggestions",
      "run": true or false,
      "for_labels": ["timeout", "external_service", "noise"],
      "min_count": <int or null>
    },
    {
      "agent": "ReportDraft",
      "run": true or false,
      "include_sections": ["summary", "ticket_links", "filters"]
    }
  ],
  "global_policy": {
    "ticket_strategy": "aggressive"|"balanced"|"conservative",
    "noise_handling": "none"|"basic_filters"|"aggressive_filters"
  },
  "reason": "short explanation of your decision"
}`

// clusterView is the compact per-cluster projection sent to the policy
// oracle, annotated with prior human feedback when present.
type clusterView struct {
	Idx         int           `json:"idx"`
	Fingerprint string        `json:"fingerprint"`
	Service     string        `json:"service,omitempty"`
	Component   string        `json:"component"`
	Message     string        `json:"message"`
	Count       int           `json:"count"`
	Label       string        `json:"label"`
	Priority    string        `json:"priority"`
	Severity    string        `json:"severity"`
	Confidence  float64       `json:"confidence"`
	Feedback    *feedbackNote `json:"feedback,omitempty"`
}

type feedbackNote struct {
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Planner asks the policy oracle for an action plan, annotating clusters
// with human feedback so reviewed issues are not proposed again. Planning
// is read-only with respect to the ledger.
type Planner struct {
	oracle oracle.Client
	model  string
	ledger *feedback.Ledger
	logger *log.Logger
}

// NewPlanner creates a planner. ledger may be nil to plan without feedback.
func NewPlanner(client oracle.Client, model string, ledger *feedback.Ledger) *Planner {
	return &Planner{
		oracle: client,
		model:  model,
		ledger: ledger,
		logger: log.New(log.Writer(), "[PLAN] ", log.LstdFlags),
	}
}

// Plan produces a normalized plan from the oracle's answer. When the
// oracle fails or returns no usable actions, an all-off default plan is
// substituted rather than failing the run.
func (p *Planner) Plan(ctx context.Context, summary triage.Summary, items []triage.Item) Plan {
	views := p.AnnotatedViews(items)

	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		p.logger.Printf("marshal summary: %v", err)
		return DefaultPlan("planner error, defaulting to no actions")
	}
	viewsJSON, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		p.logger.Printf("marshal cluster views: %v", err)
		return DefaultPlan("planner error, defaulting to no actions")
	}

	raw, err := p.oracle.Complete(ctx, p.model, planPrompt(string(summaryJSON), string(viewsJSON)))
	if err != nil {
		p.logger.Printf("policy oracle failed: %v", err)
		return DefaultPlan("policy oracle unavailable, defaulting to no actions")
	}

	var resp struct {
		Actions      []json.RawMessage `json:"actions"`
		GlobalPolicy GlobalPolicy      `json:"global_policy"`
		Reason       string            `json:"reason"`
	}
	if err := json.Unmarshal([]byte(oracle.ExtractJSON(raw)), &resp); err != nil {
		p.logger.Printf("unusable plan response: %v", err)
		return DefaultPlan("unusable policy oracle response, defaulting to no actions")
	}

	actions := normalizeActions(resp.Actions)
	if len(actions) == 0 {
		return DefaultPlan("policy oracle returned no usable actions")
	}

	reason := resp.Reason
	if reason == "" {
		reason = "no reason provided"
	}
	return Plan{Actions: actions, GlobalPolicy: resp.GlobalPolicy, Reason: reason}
}

// AnnotatedViews builds the per-cluster oracle payload, attaching the most
// recent feedback entry for each fingerprint that has one.
func (p *Planner) AnnotatedViews(items []triage.Item) []clusterView {
	var latest map[string]feedback.Entry
	if p.ledger != nil {
		latest = p.ledger.Latest()
	}

	views := make([]clusterView, 0, len(items))
	for _, it := range items {
		v := clusterView{
			Idx:         it.Idx,
			Fingerprint: it.Fingerprint,
			Service:     it.Service,
			Component:   it.Component,
			Message:     it.Message,
			Count:       it.Count,
			Label:       it.Triage.Label,
			Priority:    it.Triage.Priority,
			Severity:    it.Triage.Severity,
			Confidence:  it.Triage.Confidence,
		}
		if entry, ok := latest[it.Fingerprint]; ok {
			v.Feedback = &feedbackNote{
				Decision:  entry.Decision,
				Reason:    entry.Reason,
				Timestamp: entry.Timestamp,
			}
		}
		views = append(views, v)
	}
	return views
}

func planPrompt(summaryJSON, clustersJSON string) string {
	var b strings.Builder
	b.WriteString(planSystemPrompt)
	b.WriteString("\n\nHere is the current summary of the log review state:\n")
	b.WriteString(summaryJSON)
	b.WriteString("\n\nPer-cluster detail (with prior human feedback where available):\n")
	b.WriteString(clustersJSON)
	b.WriteString("\n\nDecide which agents to run next and return the JSON object described above.")
	return b.String()
}
