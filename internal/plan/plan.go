package plan

import "encoding/json"

// Agent names recognized by the executor. Anything else returned by the
// policy oracle is dropped during normalization.
const (
	AgentTicketDrafts      = "TicketDrafts"
	AgentFilterSuggestions = "FilterSuggestions"
	AgentReportDraft       = "ReportDraft"
)

var defaultFilterLabels = []string{"timeout", "external_service", "noise"}
var defaultReportSections = []string{"summary", "ticket_links", "filters"}

// Action is one normalized plan entry. Parameter fields are pointers so
// "not specified" survives the round trip to the audit artifact.
type Action struct {
	Agent string `json:"agent"`
	Run   bool   `json:"run"`

	// TicketDrafts parameters
	MaxTickets     *int     `json:"max_tickets,omitempty"`
	MinSeverity    *string  `json:"min_severity,omitempty"`
	MinConfidence  *float64 `json:"min_confidence,omitempty"`
	ClusterIndices []int    `json:"cluster_indices,omitempty"`

	// FilterSuggestions parameters
	ForLabels []string `json:"for_labels,omitempty"`
	MinCount  *int     `json:"min_count,omitempty"`

	// ReportDraft parameters
	IncludeSections []string `json:"include_sections,omitempty"`
}

// GlobalPolicy is advisory context carried on the plan for the audit trail.
type GlobalPolicy struct {
	TicketStrategy string `json:"ticket_strategy,omitempty"`
	NoiseHandling  string `json:"noise_handling,omitempty"`
}

// Plan is the normalized action plan for one run. It is produced fresh
// each run and persisted only as an audit artifact.
type Plan struct {
	Actions      []Action     `json:"actions"`
	GlobalPolicy GlobalPolicy `json:"global_policy"`
	Reason       string       `json:"reason"`
}

// Find returns the action for the named agent, if present.
func (p Plan) Find(agent string) (Action, bool) {
	for _, a := range p.Actions {
		if a.Agent == agent {
			return a, true
		}
	}
	return Action{}, false
}

// DefaultPlan is the safe all-off plan substituted when the policy oracle
// returns nothing usable.
func DefaultPlan(reason string) Plan {
	return Plan{
		Actions: []Action{
			{Agent: AgentTicketDrafts, Run: false},
			{Agent: AgentFilterSuggestions, Run: false, ForLabels: defaultFilterLabels},
			{Agent: AgentReportDraft, Run: false, IncludeSections: []string{"summary"}},
		},
		Reason: reason,
	}
}

// rawAction is the loosely-typed shape accepted from the policy oracle
// before normalization.
type rawAction struct {
	Agent           string   `json:"agent"`
	Run             *bool    `json:"run"`
	MaxTickets      *int     `json:"max_tickets"`
	MinSeverity     *string  `json:"min_severity"`
	MinConfidence   *float64 `json:"min_confidence"`
	ClusterIndices  []int    `json:"cluster_indices"`
	ForLabels       []string `json:"for_labels"`
	MinCount        *int     `json:"min_count"`
	IncludeSections []string `json:"include_sections"`
}

// normalizeActions keeps only known agents, defaults missing run flags to
// false and fills missing list parameters with their documented defaults.
func normalizeActions(raw []json.RawMessage) []Action {
	var out []Action
	for _, item := range raw {
		var a rawAction
		if err := json.Unmarshal(item, &a); err != nil {
			continue
		}
		run := a.Run != nil && *a.Run
		switch a.Agent {
		case AgentTicketDrafts:
			out = append(out, Action{
				Agent:          AgentTicketDrafts,
				Run:            run,
				MaxTickets:     a.MaxTickets,
				MinSeverity:    a.MinSeverity,
				MinConfidence:  a.MinConfidence,
				ClusterIndices: a.ClusterIndices,
			})
		case AgentFilterSuggestions:
			labels := a.ForLabels
			if labels == nil {
				labels = defaultFilterLabels
			}
			out = append(out, Action{
				Agent:     AgentFilterSuggestions,
				Run:       run,
				ForLabels: labels,
				MinCount:  a.MinCount,
			})
		case AgentReportDraft:
			sections := a.IncludeSections
			if sections == nil {
				sections = defaultReportSections
			}
			out = append(out, Action{
				Agent:           AgentReportDraft,
				Run:             run,
				IncludeSections: sections,
			})
		}
	}
	return out
}
