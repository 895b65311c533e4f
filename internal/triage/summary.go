package triage

// Summary is the aggregate view of one triaged run, consumed by planning.
type Summary struct {
	LogCount            int            `json:"log_count"`
	ClusterCount        int            `json:"cluster_count"`
	TriagedClusterCount int            `json:"triaged_cluster_count"`
	ByLabel             map[string]int `json:"by_label"`
	ByPriority          map[string]int `json:"by_priority"`
	InternalHighCount   int            `json:"internal_high_count"`
}

// Summarize reduces the triaged items to aggregate counts. The
// internal-high count requires label "internal_error" AND priority "high";
// severity and confidence play no part in it.
func Summarize(items []Item, logCount int) Summary {
	s := Summary{
		LogCount:            logCount,
		ClusterCount:        len(items),
		TriagedClusterCount: len(items),
		ByLabel:             make(map[string]int),
		ByPriority:          make(map[string]int),
	}

	for _, it := range items {
		label := it.Triage.Label
		priority := it.Triage.Priority
		if label != "" {
			s.ByLabel[label]++
		}
		if priority != "" {
			s.ByPriority[priority]++
		}
		if label == LabelInternalError && priority == PriorityHigh {
			s.InternalHighCount++
		}
	}

	return s
}
