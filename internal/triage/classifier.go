package triage

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/mohammad-safakhou/logsift/internal/cluster"
	"github.com/mohammad-safakhou/logsift/internal/oracle"
)

const classifySystemPrompt = `You are a senior backend engineer helping with log triage in an enterprise web application.

You MUST respond with ONLY a single valid JSON object. No markdown, no backticks, no comments.

You will receive a LIST of log clusters. For EACH cluster, decide:
- label: one of "timeout", "external_service", "internal_error", or "noise"
- priority: "high", "medium", or "low" from the perspective of what is worth developer attention
- severity: "low", "medium", or "high" impact if this issue is real
- confidence: 0.0-1.0, how sure you are about label and priority
- reason: 1-3 sentences explaining your judgement
- service: echo back the exact service name as provided in the input cluster

Use these heuristics:
- Errors in core business flows tend to be higher priority.
- Rare but severe exceptions (nil dereferences, mapping failures) are usually "internal_error" with at least medium priority.
- Repeated noisy logs, debug messages, or non-fatal warnings are "noise" with low priority.
- Integration failures with external systems are "external_service"; priority depends on how critical the integration is.
- Timeouts and transient network errors are "timeout"; usually low or medium priority unless they happen very often.

Always consider the 'count' field (how many times this cluster occurred) when deciding priority and severity.

You must return a single JSON object with key "items".
Each element in "items" must correspond to one input cluster and contain:
- "idx": the same idx value as in the input cluster
- "triage": an object with keys "label", "service", "priority", "severity", "confidence", "reason"`

// classifyPayload is the per-cluster view sent to the oracle.
type classifyPayload struct {
	Idx       int    `json:"idx"`
	Service   string `json:"service"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Log       string `json:"log"`
	Count     int    `json:"count"`
}

// Classifier drives the oracle over cluster batches and attaches a
// Classification to each cluster by index.
type Classifier struct {
	oracle       oracle.Client
	model        string
	batchSize    int
	topN         int
	excerptLines int
	logger       *log.Logger
}

// ClassifierOptions bounds the classifier's payloads.
type ClassifierOptions struct {
	BatchSize    int // clusters per oracle call
	TopN         int // 0 means classify all clusters
	ExcerptLines int // leading lines of raw log kept on each Item
}

// NewClassifier creates a classifier for the given oracle client and model.
func NewClassifier(client oracle.Client, model string, opts ClassifierOptions) *Classifier {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.ExcerptLines <= 0 {
		opts.ExcerptLines = 15
	}
	return &Classifier{
		oracle:       client,
		model:        model,
		batchSize:    opts.BatchSize,
		topN:         opts.TopN,
		excerptLines: opts.ExcerptLines,
		logger:       log.New(log.Writer(), "[TRIAGE] ", log.LstdFlags),
	}
}

// Classify sends cluster batches to the oracle and joins the verdicts back
// onto the clusters. A failed batch leaves its clusters unclassified; it
// never blocks verdicts already collected for other indices.
func (c *Classifier) Classify(ctx context.Context, clusters []cluster.Cluster) []Item {
	if c.topN > 0 && len(clusters) > c.topN {
		clusters = clusters[:c.topN]
	}
	if len(clusters) == 0 {
		return nil
	}

	payloads := make([]classifyPayload, 0, len(clusters))
	for _, cl := range clusters {
		payloads = append(payloads, classifyPayload{
			Idx:       cl.Idx,
			Service:   cl.Service(),
			Component: cl.Component,
			Message:   cl.Message,
			Log:       cl.Sample.RawLog(),
			Count:     cl.Count,
		})
	}

	verdicts := c.collectVerdicts(ctx, payloads)

	items := make([]Item, 0, len(clusters))
	for _, cl := range clusters {
		verdict, ok := verdicts[cl.Idx]
		if !ok {
			verdict = Classification{Label: LabelUnclassified}
		}
		if verdict.Service == "" {
			verdict.Service = cl.Service()
		}
		items = append(items, Item{
			Idx:          cl.Idx,
			Fingerprint:  cluster.Fingerprint(cl.Component, cl.Message),
			Service:      cl.Service(),
			Component:    cl.Component,
			Message:      cl.Message,
			Count:        cl.Count,
			StackExcerpt: excerpt(cl.Sample.RawLog(), c.excerptLines),
			Triage:       verdict,
		})
	}
	return items
}

// collectVerdicts runs batches sequentially and stores parsed verdicts by
// index regardless of which batch they arrived in.
func (c *Classifier) collectVerdicts(ctx context.Context, payloads []classifyPayload) map[int]Classification {
	verdicts := make(map[int]Classification)

	for start := 0; start < len(payloads); start += c.batchSize {
		end := start + c.batchSize
		if end > len(payloads) {
			end = len(payloads)
		}
		batch := payloads[start:end]

		body, err := json.MarshalIndent(batch, "", "  ")
		if err != nil {
			c.logger.Printf("marshal batch: %v", err)
			continue
		}

		raw, err := c.oracle.Complete(ctx, c.model, classifyPrompt(string(body)))
		if err != nil {
			c.logger.Printf("batch %d-%d failed: %v", start, end-1, err)
			continue
		}

		var resp struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal([]byte(oracle.ExtractJSON(raw)), &resp); err != nil {
			c.logger.Printf("unusable batch response: %v", err)
			continue
		}

		for _, rawItem := range resp.Items {
			var item struct {
				Idx    *int            `json:"idx"`
				Triage *Classification `json:"triage"`
				Classification
			}
			if err := json.Unmarshal(rawItem, &item); err != nil {
				continue
			}
			if item.Idx == nil {
				continue
			}
			verdict := item.Classification
			if item.Triage != nil {
				verdict = *item.Triage
			}
			verdicts[*item.Idx] = verdict
		}
	}

	return verdicts
}

func classifyPrompt(clustersJSON string) string {
	var b strings.Builder
	b.WriteString(classifySystemPrompt)
	b.WriteString("\n\nClusters:\n")
	b.WriteString(clustersJSON)
	b.WriteString("\n\nTriage ALL clusters and return a single JSON object with key \"items\".")
	return b.String()
}

func excerpt(raw string, lines int) string {
	if raw == "" {
		return ""
	}
	split := strings.Split(raw, "\n")
	if len(split) > lines {
		split = split[:lines]
	}
	return strings.Join(split, "\n")
}
