package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/logsift/internal/oracle"
	"github.com/mohammad-safakhou/logsift/internal/plan"
	"github.com/mohammad-safakhou/logsift/internal/triage"
)

const ticketSystemPrompt = `You are a senior backend engineer writing bug tickets for backend services.

You MUST respond with ONLY a single valid JSON object. No markdown, no backticks, no comments.

You will receive a LIST of log clusters. Each cluster has:
- idx: numeric index
- service: service name
- component: component or class name
- message: representative log message
- count: number of occurrences
- triage: label, severity, priority, confidence, reason
- stack_excerpt: the first lines of the stack trace

Your job for EACH cluster:
- Fill the team's bug template with concrete, helpful content.
- Extract the most relevant stack frame from stack_excerpt.
- Clearly mention the service name, component, method name, and line number in the description or notes for developers.
- If you cannot find a method/line, say so explicitly instead of guessing.

Use the cluster's count to describe frequency (e.g. "17 hits in past 24 hours").
For the search URL, DO NOT invent a real URL. Use a placeholder like:
  "TODO: Add log search URL with this query filter".
For the query filter, propose a precise query based on service, component, and a stable part of the message (no timestamps).

You must return a single JSON object with key "items".

"items" must be a list where each element corresponds to one input cluster and has:
- "idx": the same idx as the input cluster
- "summary": short ticket summary line
- "service_name": name of the service
- "issue_description": filled issue description section
- "search_url": placeholder URL as described
- "query_filter": query string
- "hits_past_window": e.g. "17 hits in past 24 hours"
- "notes_for_development": filled notes for development section
- "steps_to_reproduce": filled steps to reproduce section
- "stack_trace_excerpt": relevant stack trace excerpt only`

// TicketBody is the oracle-written content of one ticket draft.
type TicketBody struct {
	Summary             string `json:"summary"`
	ServiceName         string `json:"service_name"`
	IssueDescription    string `json:"issue_description"`
	SearchURL           string `json:"search_url"`
	QueryFilter         string `json:"query_filter"`
	HitsPastWindow      string `json:"hits_past_window"`
	NotesForDevelopment string `json:"notes_for_development"`
	StepsToReproduce    string `json:"steps_to_reproduce"`
	StackTraceExcerpt   string `json:"stack_trace_excerpt"`
}

// TicketDraft joins a drafted ticket with its cluster identity so the
// approval loop can key feedback by fingerprint.
type TicketDraft struct {
	Idx         int                   `json:"idx"`
	Fingerprint string                `json:"fingerprint"`
	Service     string                `json:"service,omitempty"`
	Component   string                `json:"component"`
	Message     string                `json:"message"`
	Count       int                   `json:"count"`
	Triage      triage.Classification `json:"triage"`
	Ticket      TicketBody            `json:"ticket"`
}

// Item returns the triage item this draft was built from.
func (d TicketDraft) Item() triage.Item {
	return triage.Item{
		Idx:         d.Idx,
		Fingerprint: d.Fingerprint,
		Service:     d.Service,
		Component:   d.Component,
		Message:     d.Message,
		Count:       d.Count,
		Triage:      d.Triage,
	}
}

// Skipped records a cluster that did not receive a draft and why.
type Skipped struct {
	Idx    int                   `json:"idx"`
	Reason string                `json:"reason"`
	Triage triage.Classification `json:"triage"`
}

// TicketDrafts is the ticket agent's full result.
type TicketDrafts struct {
	DraftCount   int           `json:"draft_count"`
	SkippedCount int           `json:"skipped_count"`
	Drafts       []TicketDraft `json:"drafts"`
	Skipped      []Skipped     `json:"skipped"`
}

// TicketAgent drives the oracle to draft tickets for selected clusters.
type TicketAgent struct {
	oracle    oracle.Client
	model     string
	batchSize int
	logger    *log.Logger
}

// NewTicketAgent creates the ticket drafting agent.
func NewTicketAgent(client oracle.Client, model string, batchSize int) *TicketAgent {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &TicketAgent{
		oracle:    client,
		model:     model,
		batchSize: batchSize,
		logger:    log.New(log.Writer(), "[TICKETS] ", log.LstdFlags),
	}
}

// Draft selects clusters per the plan action and asks the oracle for one
// ticket body per selected cluster. Clusters the oracle never answers for
// land in the skipped list with a reason, never silently dropped.
func (a *TicketAgent) Draft(ctx context.Context, items []triage.Item, action plan.Action) TicketDrafts {
	selected, skipped := selectForTickets(items, action)

	result := TicketDrafts{Skipped: skipped}
	if len(selected) == 0 {
		result.SkippedCount = len(skipped)
		return result
	}

	bodies := a.collectBodies(ctx, selected, &result)

	for _, it := range selected {
		body, ok := bodies[it.Idx]
		if !ok {
			result.Skipped = append(result.Skipped, Skipped{
				Idx:    it.Idx,
				Reason: "no draft returned for this idx",
				Triage: it.Triage,
			})
			continue
		}
		result.Drafts = append(result.Drafts, TicketDraft{
			Idx:         it.Idx,
			Fingerprint: it.Fingerprint,
			Service:     it.Service,
			Component:   it.Component,
			Message:     it.Message,
			Count:       it.Count,
			Triage:      it.Triage,
			Ticket:      body,
		})
	}

	result.DraftCount = len(result.Drafts)
	result.SkippedCount = len(result.Skipped)
	return result
}

func (a *TicketAgent) collectBodies(ctx context.Context, selected []triage.Item, result *TicketDrafts) map[int]TicketBody {
	bodies := make(map[int]TicketBody)

	for start := 0; start < len(selected); start += a.batchSize {
		end := start + a.batchSize
		if end > len(selected) {
			end = len(selected)
		}
		batch := selected[start:end]

		payload, err := json.MarshalIndent(batch, "", "  ")
		if err != nil {
			a.skipBatch(result, batch, fmt.Sprintf("marshal batch: %v", err))
			continue
		}

		raw, err := a.oracle.Complete(ctx, a.model, ticketPrompt(string(payload)))
		if err != nil {
			a.logger.Printf("ticket batch failed: %v", err)
			a.skipBatch(result, batch, "oracle call failed")
			continue
		}

		var resp struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal([]byte(oracle.ExtractJSON(raw)), &resp); err != nil {
			a.skipBatch(result, batch, "unusable oracle response")
			continue
		}

		for _, rawItem := range resp.Items {
			var item struct {
				Idx *int `json:"idx"`
				TicketBody
			}
			if err := json.Unmarshal(rawItem, &item); err != nil {
				continue
			}
			if item.Idx == nil {
				continue
			}
			bodies[*item.Idx] = item.TicketBody
		}
	}

	return bodies
}

func (a *TicketAgent) skipBatch(result *TicketDrafts, batch []triage.Item, reason string) {
	for _, it := range batch {
		result.Skipped = append(result.Skipped, Skipped{Idx: it.Idx, Reason: reason, Triage: it.Triage})
	}
}

var severityRank = map[string]int{"low": 1, "medium": 2, "high": 3}

// selectForTickets applies the plan action's selection: explicit cluster
// indices win; otherwise severity/confidence thresholds and the ticket cap
// are applied in item order. Unclassified clusters never get tickets.
func selectForTickets(items []triage.Item, action plan.Action) (selected []triage.Item, skipped []Skipped) {
	indexSet := make(map[int]bool, len(action.ClusterIndices))
	for _, idx := range action.ClusterIndices {
		indexSet[idx] = true
	}

	for _, it := range items {
		switch {
		case it.Triage.Unclassified():
			skipped = append(skipped, Skipped{Idx: it.Idx, Reason: "unclassified", Triage: it.Triage})
		case len(indexSet) > 0 && !indexSet[it.Idx]:
			skipped = append(skipped, Skipped{Idx: it.Idx, Reason: "not selected", Triage: it.Triage})
		case len(indexSet) == 0 && action.MinSeverity != nil &&
			severityRank[it.Triage.Severity] < severityRank[*action.MinSeverity]:
			skipped = append(skipped, Skipped{Idx: it.Idx, Reason: "below severity threshold", Triage: it.Triage})
		case len(indexSet) == 0 && action.MinConfidence != nil && it.Triage.Confidence < *action.MinConfidence:
			skipped = append(skipped, Skipped{Idx: it.Idx, Reason: "below confidence threshold", Triage: it.Triage})
		case action.MaxTickets != nil && len(selected) >= *action.MaxTickets:
			skipped = append(skipped, Skipped{Idx: it.Idx, Reason: "ticket cap reached", Triage: it.Triage})
		default:
			selected = append(selected, it)
		}
	}
	return selected, skipped
}

func ticketPrompt(clustersJSON string) string {
	var b strings.Builder
	b.WriteString(ticketSystemPrompt)
	b.WriteString("\n\nHere is the list of log clusters and triage info.\n\nClusters:\n")
	b.WriteString(clustersJSON)
	b.WriteString("\n\nFor EACH cluster in this list, produce one draft object and return a single JSON object with key \"items\".")
	return b.String()
}
