package plan

import "github.com/mohammad-safakhou/logsift/internal/triage"

// Fallback builds a deterministic plan from the aggregate summary alone.
// It needs no network access and serves as the circuit breaker when the
// policy oracle is disabled or unreachable: tickets run iff there is at
// least one high-priority internal error, filters run iff anything was
// triaged, and the report runs iff either of those ran.
func Fallback(summary triage.Summary) Plan {
	runTickets := summary.InternalHighCount > 0
	runFilters := summary.TriagedClusterCount > 0
	runReport := runTickets || runFilters

	hasExternal := summary.ByLabel[triage.LabelExternalService] > 0
	hasNoise := summary.ByLabel[triage.LabelNoise] > 0

	sections := []string{"summary"}
	if runTickets {
		sections = append(sections, "ticket_links")
	}
	if runFilters || hasExternal || hasNoise {
		sections = append(sections, "filters")
	}

	return Plan{
		Actions: []Action{
			{Agent: AgentTicketDrafts, Run: runTickets},
			{Agent: AgentFilterSuggestions, Run: runFilters, ForLabels: defaultFilterLabels},
			{Agent: AgentReportDraft, Run: runReport, IncludeSections: sections},
		},
		GlobalPolicy: GlobalPolicy{
			TicketStrategy: "baseline",
			NoiseHandling:  "basic_filters",
		},
		Reason: "Static pipeline plan without policy oracle: draft tickets for " +
			"high-priority internal errors, suggest filters for triaged noise, " +
			"and write a report when either produced something.",
	}
}
