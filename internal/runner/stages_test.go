package runner

import (
	"context"
	"testing"

	"github.com/mohammad-safakhou/logsift/internal/agents"
	"github.com/mohammad-safakhou/logsift/internal/artifact"
	"github.com/mohammad-safakhou/logsift/internal/cluster"
)

func TestTriageStageFallsBackToRawClusters(t *testing.T) {
	deps := testDeps(t, &staticSource{})
	p := NewPipeline(deps)
	ctx := context.Background()

	// only the unrefined artifact exists
	doc := clustersDoc{
		ClusterCount: 1,
		LogCount:     4,
		Clusters: []cluster.Cluster{
			{Idx: 0, Component: "svc.Comp", Message: "boom", Count: 4},
		},
	}
	if err := deps.Artifacts.Save(ctx, artifact.StageClusters, doc); err != nil {
		t.Fatalf("seed clusters: %v", err)
	}

	summary, err := p.TriageStage(ctx)
	if err != nil {
		t.Fatalf("triage stage: %v", err)
	}
	if summary.LogCount != 4 || summary.TriagedClusterCount != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	var triaged triagedDoc
	if err := deps.Artifacts.Load(ctx, artifact.StageTriaged, &triaged); err != nil {
		t.Fatalf("triaged artifact missing: %v", err)
	}
}

func TestStagesRequireUpstreamArtifacts(t *testing.T) {
	p := NewPipeline(testDeps(t, &staticSource{}))
	ctx := context.Background()

	if _, err := p.RefineStage(ctx); err == nil {
		t.Fatalf("refine stage must fail without a clusters artifact")
	}
	if _, err := p.TicketsStage(ctx); err == nil {
		t.Fatalf("tickets stage must fail without a triaged artifact")
	}
	skipAll := func(agents.TicketDraft) (Decision, string) { return DecisionSkipAll, "" }
	if _, err := p.ReviewStage(ctx, skipAll); err == nil {
		t.Fatalf("review stage must fail without a drafts artifact")
	}
}

func TestReviewStageWithNoDrafts(t *testing.T) {
	deps := testDeps(t, &staticSource{})
	p := NewPipeline(deps)
	ctx := context.Background()

	if err := deps.Artifacts.Save(ctx, artifact.StageTicketDrafts, agents.TicketDrafts{}); err != nil {
		t.Fatalf("seed drafts: %v", err)
	}
	approve := func(agents.TicketDraft) (Decision, string) { return DecisionApprove, "" }
	result, err := p.ReviewStage(ctx, approve)
	if err != nil {
		t.Fatalf("review stage: %v", err)
	}
	if result.Reviewed != 0 {
		t.Fatalf("empty drafts must review nothing: %+v", result)
	}
}
