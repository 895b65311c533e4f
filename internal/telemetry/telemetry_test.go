package telemetry

import (
	"testing"
	"time"

	"github.com/mohammad-safakhou/logsift/config"
)

func TestRecordCallAccumulates(t *testing.T) {
	tel := NewTelemetry(config.TelemetryConfig{CostTracking: true})

	tel.RecordCall("gpt-test", 100, 40, 0.002)
	tel.RecordCall("gpt-test", 50, 10, 0.001)

	u := tel.Snapshot()
	if u.Calls != 2 || u.PromptTokens != 150 || u.CompletionTokens != 50 {
		t.Fatalf("unexpected usage: %+v", u)
	}
	if u.TotalTokens() != 200 {
		t.Fatalf("total tokens: want 200, got %d", u.TotalTokens())
	}
	if u.Cost < 0.0029 || u.Cost > 0.0031 {
		t.Fatalf("cost not accumulated: %f", u.Cost)
	}
}

func TestCostTrackingDisabled(t *testing.T) {
	tel := NewTelemetry(config.TelemetryConfig{})
	tel.RecordCall("gpt-test", 10, 5, 0.5)
	if u := tel.Snapshot(); u.Cost != 0 {
		t.Fatalf("cost must stay zero when tracking is off: %f", u.Cost)
	}
}

func TestResetClearsUsage(t *testing.T) {
	tel := NewTelemetry(config.TelemetryConfig{CostTracking: true})
	tel.RecordCall("gpt-test", 10, 5, 0.1)
	tel.ObserveStage("refine", 20*time.Millisecond)
	tel.Reset()

	if u := tel.Snapshot(); u != (Usage{}) {
		t.Fatalf("expected zero usage after reset: %+v", u)
	}
}
