package logevent

import "testing"

func TestNormalizeFieldAliases(t *testing.T) {
	e := Normalize(map[string]interface{}{
		"@timestamp":  "2026-01-01T10:00:00Z",
		"log_level":   "ERROR",
		"service":     "checkout",
		"msg":         "boom",
		"logger_name": "billing.Invoice",
		"trace_id":    "abc-123",
	})

	if e.Timestamp != "2026-01-01T10:00:00Z" || e.Level != "ERROR" {
		t.Fatalf("timestamp/level aliases not resolved: %+v", e)
	}
	if e.Service != "checkout" || e.Message != "boom" || e.Component != "billing.Invoice" {
		t.Fatalf("field aliases not resolved: %+v", e)
	}
	if e.CorrelationID != "abc-123" {
		t.Fatalf("correlation id not resolved: %+v", e)
	}
}

func TestNormalizeMissingFieldsAreEmpty(t *testing.T) {
	e := Normalize(map[string]interface{}{"count": 7})
	if e.Timestamp != "" || e.Message != "" || e.Component != "" {
		t.Fatalf("missing fields must normalize to empty strings: %+v", e)
	}
	if e.Raw == nil {
		t.Fatalf("raw record must be retained")
	}
}

func TestNormalizeSkipsBlankAndNonStringValues(t *testing.T) {
	e := Normalize(map[string]interface{}{
		"message": "   ",
		"msg":     "fallback wins",
		"level":   42,
	})
	if e.Message != "fallback wins" {
		t.Fatalf("blank alias must fall through: %q", e.Message)
	}
	if e.Level != "" {
		t.Fatalf("non-string value must be ignored: %q", e.Level)
	}
}

func TestRawLogPrefersLogField(t *testing.T) {
	e := Normalize(map[string]interface{}{
		"message": "short",
		"log":     "short\n  at billing.Invoice.render(Invoice.java:42)",
	})
	if got := e.RawLog(); got != "short\n  at billing.Invoice.render(Invoice.java:42)" {
		t.Fatalf("expected full log text, got %q", got)
	}

	e = Normalize(map[string]interface{}{"message": "only message"})
	if e.RawLog() != "only message" {
		t.Fatalf("expected message fallback, got %q", e.RawLog())
	}
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	events := NormalizeAll([]map[string]interface{}{
		{"message": "first"},
		{"message": "second"},
	})
	if len(events) != 2 || events[0].Message != "first" || events[1].Message != "second" {
		t.Fatalf("input order not preserved: %+v", events)
	}
}
