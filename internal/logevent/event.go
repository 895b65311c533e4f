package logevent

import "strings"

// Event is one normalized log record. Immutable once built: the pipeline
// only ever reads it after normalization.
type Event struct {
	Timestamp     string                 `json:"timestamp"`
	Level         string                 `json:"level"`
	Service       string                 `json:"service"`
	Message       string                 `json:"message"`
	Component     string                 `json:"component"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Raw           map[string]interface{} `json:"raw,omitempty"`
}

// Normalize maps one heterogeneous raw record into the canonical event shape.
// Field lookups tolerate the common aliases seen across log shippers; missing
// fields come through as empty strings, never as an error.
func Normalize(raw map[string]interface{}) Event {
	return Event{
		Timestamp:     firstString(raw, "@timestamp", "timestamp", "time"),
		Level:         firstString(raw, "level", "log_level", "severity"),
		Service:       firstString(raw, "service", "service_name", "container_name"),
		Message:       firstString(raw, "message", "msg", "log"),
		Component:     firstString(raw, "component", "logger", "logger_name", "class"),
		CorrelationID: firstString(raw, "trace_id", "traceId", "correlation_id"),
		Raw:           raw,
	}
}

// NormalizeAll normalizes a batch in input order.
func NormalizeAll(raws []map[string]interface{}) []Event {
	events := make([]Event, 0, len(raws))
	for _, r := range raws {
		events = append(events, Normalize(r))
	}
	return events
}

// RawLog returns the full log text of the event, used for stack excerpts.
// Falls back to the normalized message when no dedicated log field exists.
func (e Event) RawLog() string {
	if e.Raw != nil {
		if s, ok := e.Raw["log"].(string); ok && s != "" {
			return s
		}
		if s, ok := e.Raw["stacktrace"].(string); ok && s != "" {
			return s
		}
	}
	return e.Message
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}
