package agents

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/mohammad-safakhou/logsift/internal/oracle"
	"github.com/mohammad-safakhou/logsift/internal/triage"
)

const filterSystemPrompt = `You are a log filtering assistant for an enterprise backend system.

Your task is to propose precise search filters that:
- Match the given error cluster reliably.
- Generalize dynamic parts such as IDs, UUIDs, timestamps, numeric values.
- Avoid over-matching unrelated logs.
- Include a stable phrase from the error message.
- DO NOT key the filter on the component or exception class name alone;
  another error can occur in the same component in another place.
- Do NOT produce two filters matching the same logs.

Additionally, you must generate a filter clause that can be inserted
directly into the 'must_not' array of an existing search query. This clause
should usually be a simple match_phrase on the 'log' field, e.g.:
  { "match_phrase": { "log": "Some stable error text" } }

or, if necessary, a bool with multiple match_phrase subclauses.

You will receive a LIST of clusters, and you must propose at most one
filter clause per cluster. If you cannot propose a safe filter for a
cluster, omit it from the items list.

You MUST respond with ONLY a single valid JSON object. No markdown, no backticks, no comments.

Return JSON with this exact schema:
{
  "items": [
    {
      "idx": <int>,
      "filter_clause": { "match_phrase": { "log": "..." } }
    }
  ]
}`

// FilterSuggestion is one proposed suppression clause for a cluster.
type FilterSuggestion struct {
	Idx         int             `json:"idx"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Clause      json.RawMessage `json:"filter_clause"`
}

// FilterSuggestions is the filter agent's full result.
type FilterSuggestions struct {
	Count       int                `json:"count"`
	Suggestions []FilterSuggestion `json:"suggestions"`
}

// FilterAgent proposes suppression filters for drafted clusters.
type FilterAgent struct {
	oracle    oracle.Client
	model     string
	batchSize int
	logger    *log.Logger
}

// NewFilterAgent creates the filter suggestion agent.
func NewFilterAgent(client oracle.Client, model string, batchSize int) *FilterAgent {
	if batchSize <= 0 {
		batchSize = 12
	}
	return &FilterAgent{
		oracle:    client,
		model:     model,
		batchSize: batchSize,
		logger:    log.New(log.Writer(), "[FILTERS] ", log.LstdFlags),
	}
}

// filterPayload is the compact per-draft view sent to the oracle.
type filterPayload struct {
	Idx       int                   `json:"idx"`
	Service   string                `json:"service,omitempty"`
	Component string                `json:"component"`
	Message   string                `json:"message"`
	Count     int                   `json:"count"`
	Triage    triage.Classification `json:"triage"`
}

// Suggest proposes at most one filter clause per drafted cluster. The
// oracle may omit clusters it cannot filter safely; a failed batch simply
// contributes no suggestions.
func (a *FilterAgent) Suggest(ctx context.Context, drafts []TicketDraft) FilterSuggestions {
	if len(drafts) == 0 {
		return FilterSuggestions{}
	}

	fingerprintByIdx := make(map[int]string, len(drafts))
	payloads := make([]filterPayload, 0, len(drafts))
	for _, d := range drafts {
		fingerprintByIdx[d.Idx] = d.Fingerprint
		message := d.Message
		if message == "" {
			message = d.Ticket.Summary
		}
		payloads = append(payloads, filterPayload{
			Idx:       d.Idx,
			Service:   d.Service,
			Component: d.Component,
			Message:   message,
			Count:     d.Count,
			Triage:    d.Triage,
		})
	}

	var result FilterSuggestions
	seen := make(map[int]bool)

	for start := 0; start < len(payloads); start += a.batchSize {
		end := start + a.batchSize
		if end > len(payloads) {
			end = len(payloads)
		}

		body, err := json.MarshalIndent(payloads[start:end], "", "  ")
		if err != nil {
			a.logger.Printf("marshal batch: %v", err)
			continue
		}

		raw, err := a.oracle.Complete(ctx, a.model, filterPrompt(string(body)))
		if err != nil {
			a.logger.Printf("filter batch failed: %v", err)
			continue
		}

		var resp struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal([]byte(oracle.ExtractJSON(raw)), &resp); err != nil {
			a.logger.Printf("unusable filter response: %v", err)
			continue
		}

		for _, rawItem := range resp.Items {
			var item struct {
				Idx    *int            `json:"idx"`
				Clause json.RawMessage `json:"filter_clause"`
			}
			if err := json.Unmarshal(rawItem, &item); err != nil {
				continue
			}
			if item.Idx == nil || len(item.Clause) == 0 || seen[*item.Idx] {
				continue
			}
			seen[*item.Idx] = true
			result.Suggestions = append(result.Suggestions, FilterSuggestion{
				Idx:         *item.Idx,
				Fingerprint: fingerprintByIdx[*item.Idx],
				Clause:      item.Clause,
			})
		}
	}

	result.Count = len(result.Suggestions)
	return result
}

func filterPrompt(clustersJSON string) string {
	var b strings.Builder
	b.WriteString(filterSystemPrompt)
	b.WriteString("\n\nClusters:\n")
	b.WriteString(clustersJSON)
	b.WriteString("\n\nFor EACH cluster, decide if you can propose a filter clause that would safely suppress these logs. Return a single JSON object with key \"items\".")
	return b.String()
}
