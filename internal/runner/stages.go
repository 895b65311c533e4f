package runner

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/logsift/internal/agents"
	"github.com/mohammad-safakhou/logsift/internal/artifact"
	"github.com/mohammad-safakhou/logsift/internal/plan"
	"github.com/mohammad-safakhou/logsift/internal/triage"
)

// Stage commands run one pipeline step at a time, reading the previous
// step's artifact and writing their own. They exist so a session can be
// inspected and resumed between steps.

// RefineStage loads clusters, refines them and persists the result.
func (p *Pipeline) RefineStage(ctx context.Context) (int, error) {
	var doc clustersDoc
	if err := p.artifacts.Load(ctx, artifact.StageClusters, &doc); err != nil {
		return 0, fmt.Errorf("load clusters (run preprocess first): %w", err)
	}

	refined := p.refiner.Refine(ctx, doc.Clusters)
	out := clustersDoc{ClusterCount: len(refined), LogCount: doc.LogCount, Clusters: refined}
	if err := p.artifacts.Save(ctx, artifact.StageClustersRefined, out); err != nil {
		return 0, err
	}
	return len(refined), nil
}

// TriageStage classifies the refined clusters (falling back to the raw
// cluster artifact) and persists items plus the aggregate summary.
func (p *Pipeline) TriageStage(ctx context.Context) (triage.Summary, error) {
	var doc clustersDoc
	if err := p.artifacts.Load(ctx, artifact.StageClustersRefined, &doc); err != nil {
		if err := p.artifacts.Load(ctx, artifact.StageClusters, &doc); err != nil {
			return triage.Summary{}, fmt.Errorf("load clusters (run preprocess first): %w", err)
		}
	}

	items := p.classifier.Classify(ctx, doc.Clusters)
	if err := p.artifacts.Save(ctx, artifact.StageTriaged, triagedDoc{Items: items}); err != nil {
		return triage.Summary{}, err
	}

	summary := triage.Summarize(items, doc.LogCount)
	if err := p.artifacts.Save(ctx, artifact.StageSummary, summary); err != nil {
		return triage.Summary{}, err
	}
	return summary, nil
}

// TicketsStage drafts tickets for every classified cluster.
func (p *Pipeline) TicketsStage(ctx context.Context) (agents.TicketDrafts, error) {
	var doc triagedDoc
	if err := p.artifacts.Load(ctx, artifact.StageTriaged, &doc); err != nil {
		return agents.TicketDrafts{}, fmt.Errorf("load triaged items (run triage first): %w", err)
	}

	drafts := p.ticketAgent.Draft(ctx, doc.Items, plan.Action{Agent: plan.AgentTicketDrafts, Run: true})
	if err := p.artifacts.Save(ctx, artifact.StageTicketDrafts, drafts); err != nil {
		return agents.TicketDrafts{}, err
	}
	return drafts, nil
}

// FiltersStage proposes suppression filters for the drafted tickets.
func (p *Pipeline) FiltersStage(ctx context.Context) (agents.FilterSuggestions, error) {
	var drafts agents.TicketDrafts
	if err := p.artifacts.Load(ctx, artifact.StageTicketDrafts, &drafts); err != nil {
		return agents.FilterSuggestions{}, fmt.Errorf("load ticket drafts (run tickets first): %w", err)
	}

	filters := p.filterAgent.Suggest(ctx, drafts.Drafts)
	if err := p.artifacts.Save(ctx, artifact.StageFilterSuggestions, filters); err != nil {
		return agents.FilterSuggestions{}, err
	}
	return filters, nil
}

// ReportStage writes the session report from drafts and filters and
// publishes it through the report sink.
func (p *Pipeline) ReportStage(ctx context.Context) (agents.ReportDraft, string, error) {
	var drafts agents.TicketDrafts
	if err := p.artifacts.Load(ctx, artifact.StageTicketDrafts, &drafts); err != nil {
		p.logger.Printf("no ticket drafts artifact, reporting without tickets")
	}
	var filters agents.FilterSuggestions
	if err := p.artifacts.Load(ctx, artifact.StageFilterSuggestions, &filters); err != nil {
		p.logger.Printf("no filter suggestions artifact, reporting without filters")
	}

	report := p.reportAgent.Draft(ctx, drafts, filters, nil)
	if err := p.artifacts.Save(ctx, artifact.StageReportDraft, report); err != nil {
		return agents.ReportDraft{}, "", err
	}

	pageID, err := p.reportSink.Publish(ctx, report.Markdown)
	if err != nil {
		return report, "", err
	}
	return report, pageID, nil
}

// ReviewStage runs the approval loop over the persisted ticket drafts.
func (p *Pipeline) ReviewStage(ctx context.Context, decide DecisionFunc) (ReviewResult, error) {
	var drafts agents.TicketDrafts
	if err := p.artifacts.Load(ctx, artifact.StageTicketDrafts, &drafts); err != nil {
		return ReviewResult{}, fmt.Errorf("load ticket drafts (run tickets first): %w", err)
	}
	if len(drafts.Drafts) == 0 {
		p.logger.Printf("no drafts to review")
		return ReviewResult{}, nil
	}
	return p.Review(ctx, drafts.Drafts, decide), nil
}
