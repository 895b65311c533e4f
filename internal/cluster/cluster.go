package cluster

import (
	"sort"
	"strings"
	"time"

	"github.com/mohammad-safakhou/logsift/internal/logevent"
)

// UnknownComponent is the sentinel bucket for events with no component field.
const UnknownComponent = "<unknown_component>"

// Cluster is a group of log events sharing a (component, message) identity.
// Message is the first-seen representative text, not an aggregate.
type Cluster struct {
	Idx              int            `json:"idx"`
	Component        string         `json:"component"`
	Message          string         `json:"message"`
	Count            int            `json:"count"`
	Sample           logevent.Event `json:"sample"`
	Timestamps       []string       `json:"timestamps"`
	MergedMemberIdxs []int          `json:"merged_member_idxs,omitempty"`
}

// Service returns the service name of the representative event.
func (c Cluster) Service() string {
	return c.Sample.Service
}

// Build partitions normalized events by (component, trimmed message) and
// returns clusters ordered count-descending, ties broken by first-seen key
// order. The partition is exhaustive and disjoint: every event lands in
// exactly one cluster, events without a component go into the
// UnknownComponent bucket.
func Build(events []logevent.Event) []Cluster {
	type key struct{ component, message string }

	groups := make(map[key][]logevent.Event)
	var order []key
	for _, e := range events {
		k := key{component: e.Component, message: strings.TrimSpace(e.Message)}
		if k.component == "" {
			k.component = UnknownComponent
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	clusters := make([]Cluster, 0, len(order))
	for _, k := range order {
		members := groups[k]
		sample := members[0]
		timestamps := make([]string, 0, len(members))
		for _, m := range members {
			timestamps = append(timestamps, m.Timestamp)
			// earliest timestamp wins; input order breaks ties
			if m.Timestamp != "" && (sample.Timestamp == "" || earlier(m.Timestamp, sample.Timestamp)) {
				sample = m
			}
		}
		sort.Strings(timestamps)
		clusters = append(clusters, Cluster{
			Component:  k.component,
			Message:    k.message,
			Count:      len(members),
			Sample:     sample,
			Timestamps: timestamps,
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Count > clusters[j].Count
	})
	for i := range clusters {
		clusters[i].Idx = i
	}
	return clusters
}

// earlier compares timestamps by instant when both parse as RFC3339, so
// records with different zone offsets order correctly. Anything else falls
// back to lexicographic order, which matches for the common shipper format.
func earlier(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339, a)
	tb, errB := time.Parse(time.RFC3339, b)
	if errA == nil && errB == nil {
		return ta.Before(tb)
	}
	return a < b
}
