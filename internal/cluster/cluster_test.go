package cluster

import (
	"testing"

	"github.com/mohammad-safakhou/logsift/internal/logevent"
)

func event(ts, component, message string) logevent.Event {
	return logevent.Event{Timestamp: ts, Component: component, Message: message}
}

func TestBuildPartitionIsExhaustiveAndDisjoint(t *testing.T) {
	events := []logevent.Event{
		event("2026-01-01T10:00:00Z", "billing.Invoice", "failed to render"),
		event("2026-01-01T10:01:00Z", "billing.Invoice", "failed to render"),
		event("2026-01-01T10:02:00Z", "auth.Token", "token expired"),
		event("2026-01-01T10:03:00Z", "billing.Invoice", "failed to render"),
		event("2026-01-01T10:04:00Z", "", "orphan message"),
	}

	clusters := Build(events)

	total := 0
	for _, c := range clusters {
		if c.Count != len(c.Timestamps) {
			t.Fatalf("cluster %d: count %d != timestamps %d", c.Idx, c.Count, len(c.Timestamps))
		}
		total += c.Count
	}
	if total != len(events) {
		t.Fatalf("expected %d events across clusters, got %d", len(events), total)
	}
}

func TestBuildOrdersByCountDescending(t *testing.T) {
	events := []logevent.Event{
		event("t1", "a.A", "rare"),
		event("t2", "b.B", "common"),
		event("t3", "b.B", "common"),
		event("t4", "b.B", "common"),
	}

	clusters := Build(events)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].Message != "common" || clusters[0].Count != 3 {
		t.Fatalf("expected common cluster first, got %+v", clusters[0])
	}
	if clusters[0].Idx != 0 || clusters[1].Idx != 1 {
		t.Fatalf("expected dense indices, got %d and %d", clusters[0].Idx, clusters[1].Idx)
	}
}

func TestBuildSampleIsEarliestTimestamp(t *testing.T) {
	events := []logevent.Event{
		event("2026-01-01T12:00:00Z", "a.A", "boom"),
		event("2026-01-01T09:00:00Z", "a.A", "boom"),
		event("2026-01-01T10:00:00Z", "a.A", "boom"),
	}

	clusters := Build(events)
	if got := clusters[0].Sample.Timestamp; got != "2026-01-01T09:00:00Z" {
		t.Fatalf("expected earliest sample, got %s", got)
	}
}

func TestBuildSampleHonorsZoneOffsets(t *testing.T) {
	// 10:00+05:00 is 05:00Z, earlier than 06:00Z even though it sorts
	// after it lexicographically.
	events := []logevent.Event{
		event("2026-01-01T06:00:00Z", "a.A", "boom"),
		event("2026-01-01T10:00:00+05:00", "a.A", "boom"),
	}

	clusters := Build(events)
	if got := clusters[0].Sample.Timestamp; got != "2026-01-01T10:00:00+05:00" {
		t.Fatalf("expected offset record as earliest sample, got %s", got)
	}
}

func TestBuildUnknownComponentBucket(t *testing.T) {
	clusters := Build([]logevent.Event{event("t", "", "no component here")})
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].Component != UnknownComponent {
		t.Fatalf("expected %q, got %q", UnknownComponent, clusters[0].Component)
	}
}

func TestBuildTrimsMessageForGrouping(t *testing.T) {
	events := []logevent.Event{
		event("t1", "a.A", "  padded  "),
		event("t2", "a.A", "padded"),
	}
	clusters := Build(events)
	if len(clusters) != 1 {
		t.Fatalf("expected trimmed messages to group, got %d clusters", len(clusters))
	}
	if clusters[0].Count != 2 {
		t.Fatalf("expected count 2, got %d", clusters[0].Count)
	}
}
