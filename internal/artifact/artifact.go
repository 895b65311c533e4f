package artifact

import "context"

// Stage names for boundary artifacts. One JSON document is written per
// stage; the next run (or a later stage command) reads it back as input.
const (
	StageRawLogs           = "raw_logs"
	StageClusters          = "clusters"
	StageClustersRefined   = "clusters_refined"
	StageTriaged           = "triaged_logs"
	StageSummary           = "summary"
	StagePlan              = "plan"
	StageTicketDrafts      = "ticket_drafts"
	StageFilterSuggestions = "filter_suggestions"
	StageReportDraft       = "report_draft"
	StageRunResult         = "run_result"
)

// Store persists stage artifacts by logical name. Keeping the store
// behind an interface lets pipeline logic run against any backing medium.
type Store interface {
	Save(ctx context.Context, stage string, v interface{}) error
	Load(ctx context.Context, stage string, v interface{}) error
}
