package triage

import "testing"

func TestSummarizeCounts(t *testing.T) {
	items := []Item{
		{Triage: Classification{Label: LabelInternalError, Priority: PriorityHigh, Severity: "low"}},
		{Triage: Classification{Label: LabelInternalError, Priority: PriorityLow, Severity: "high"}},
		{Triage: Classification{Label: LabelTimeout, Priority: PriorityHigh}},
		{Triage: Classification{Label: LabelNoise, Priority: PriorityLow}},
		{Triage: Classification{Label: LabelUnclassified}},
	}

	s := Summarize(items, 42)

	if s.LogCount != 42 {
		t.Fatalf("log count: want 42, got %d", s.LogCount)
	}
	if s.ClusterCount != 5 || s.TriagedClusterCount != 5 {
		t.Fatalf("cluster counts: got %d/%d", s.ClusterCount, s.TriagedClusterCount)
	}
	if s.ByLabel[LabelInternalError] != 2 || s.ByLabel[LabelTimeout] != 1 || s.ByLabel[LabelNoise] != 1 {
		t.Fatalf("unexpected label counts: %v", s.ByLabel)
	}
	if s.ByPriority[PriorityHigh] != 2 || s.ByPriority[PriorityLow] != 2 {
		t.Fatalf("unexpected priority counts: %v", s.ByPriority)
	}
	// requires internal_error AND high priority; severity is irrelevant
	if s.InternalHighCount != 1 {
		t.Fatalf("internal high count: want 1, got %d", s.InternalHighCount)
	}
}

func TestSummarizeSkipsEmptyFields(t *testing.T) {
	s := Summarize([]Item{{Triage: Classification{}}}, 1)
	if len(s.ByLabel) != 0 || len(s.ByPriority) != 0 {
		t.Fatalf("empty label/priority must not be counted: %v %v", s.ByLabel, s.ByPriority)
	}
}
