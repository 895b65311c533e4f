package triage

// Label values attached by the classifier.
const (
	LabelTimeout         = "timeout"
	LabelExternalService = "external_service"
	LabelInternalError   = "internal_error"
	LabelNoise           = "noise"

	// LabelUnclassified is the placeholder for clusters the oracle never
	// returned a verdict for. It keeps them out of high-value actions
	// without aborting the run.
	LabelUnclassified = "unclassified"
)

// Priority and severity values.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Classification is the oracle's verdict on one cluster.
type Classification struct {
	Label      string  `json:"label"`
	Service    string  `json:"service,omitempty"`
	Priority   string  `json:"priority"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Unclassified reports whether this is the placeholder verdict.
func (c Classification) Unclassified() bool {
	return c.Label == LabelUnclassified || c.Label == ""
}

// Item is a cluster joined with its fingerprint, classification and a
// bounded excerpt of the sample event's raw log. This is the unit handed
// to the summarizer and the planner.
type Item struct {
	Idx          int            `json:"idx"`
	Fingerprint  string         `json:"fingerprint"`
	Service      string         `json:"service,omitempty"`
	Component    string         `json:"component"`
	Message      string         `json:"message"`
	Count        int            `json:"count"`
	StackExcerpt string         `json:"stack_excerpt,omitempty"`
	Triage       Classification `json:"triage"`
}
