package refine

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/mohammad-safakhou/logsift/internal/cluster"
	"github.com/mohammad-safakhou/logsift/internal/oracle"
)

const systemPrompt = `You are a log clustering assistant for a backend service fleet.

You MUST respond with ONLY a single valid JSON object. No markdown, no backticks, no comments.

You will receive a LIST of log clusters. Each cluster has:
- idx: numeric cluster index
- service: service name (if available)
- component: component or class name
- message: representative log message
- count: number of occurrences

Your job:
- Group clusters that represent the SAME underlying logical error.
- Treat dynamic parts like IDs, numbers, filenames, UUIDs, and similar variations as the SAME error,
  as long as the core message and root cause seem the same.
- Messages that differ only in a file name or ID suffix should usually be grouped together.

You MUST return a single JSON object with key "groups".

"groups" must be a list where each element has:
- "canonical_idx": the idx of the cluster that best represents the group
- "member_idxs": a list of all idx values that belong to this group (including canonical_idx)

Every input cluster idx must appear in exactly one "member_idxs" list in the output.
Do NOT invent new idx values.`

// compactView is the per-cluster projection sent to the oracle.
type compactView struct {
	Idx       int    `json:"idx"`
	Service   string `json:"service"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Count     int    `json:"count"`
}

type mergeGroup struct {
	CanonicalIdx json.Number   `json:"canonical_idx"`
	MemberIdxs   []json.Number `json:"member_idxs"`
}

type mergeResponse struct {
	Groups []json.RawMessage `json:"groups"`
}

// Refiner merges clusters that describe the same logical error but differ
// in volatile tokens. It degrades to identity when the oracle is unusable.
type Refiner struct {
	oracle    oracle.Client
	model     string
	batchSize int
	logger    *log.Logger
}

// NewRefiner creates a refiner using the given oracle client and model.
// batchSize <= 0 sends all clusters in a single call.
func NewRefiner(client oracle.Client, model string, batchSize int) *Refiner {
	return &Refiner{
		oracle:    client,
		model:     model,
		batchSize: batchSize,
		logger:    log.New(log.Writer(), "[REFINE] ", log.LstdFlags),
	}
}

// Refine asks the oracle for a merge grouping and applies it. Malformed
// groups and already-consumed indices are skipped; unreferenced clusters
// pass through unmerged. Output indices are renumbered densely from 0.
func (r *Refiner) Refine(ctx context.Context, clusters []cluster.Cluster) []cluster.Cluster {
	if len(clusters) == 0 {
		return clusters
	}

	byIdx := make(map[int]cluster.Cluster, len(clusters))
	order := make([]int, 0, len(clusters))
	for _, c := range clusters {
		byIdx[c.Idx] = c
		order = append(order, c.Idx)
	}

	groups := r.collectGroups(ctx, clusters)
	if len(groups) == 0 {
		r.logger.Printf("no usable grouping, passing %d clusters through unmerged", len(clusters))
		return renumber(clusters)
	}

	used := make(map[int]bool)
	var merged []cluster.Cluster

	for _, g := range groups {
		canonicalIdx, ok := asInt(g.CanonicalIdx)
		if !ok {
			continue
		}
		var members []int
		for _, raw := range g.MemberIdxs {
			idx, ok := asInt(raw)
			if !ok {
				continue
			}
			if _, exists := byIdx[idx]; !exists || used[idx] {
				continue
			}
			used[idx] = true
			members = append(members, idx)
		}
		if len(members) == 0 {
			continue
		}

		canonical, ok := byIdx[canonicalIdx]
		if !ok {
			canonical = byIdx[members[0]]
		}

		total := 0
		for _, idx := range members {
			total += byIdx[idx].Count
		}

		out := canonical
		out.Count = total
		out.MergedMemberIdxs = members
		merged = append(merged, out)
	}

	for _, idx := range order {
		if !used[idx] {
			merged = append(merged, byIdx[idx])
		}
	}

	r.logger.Printf("refined %d clusters into %d", len(clusters), len(merged))
	return renumber(merged)
}

// collectGroups runs the oracle over batches of the compact projection and
// concatenates the returned groups. A failed batch contributes nothing.
func (r *Refiner) collectGroups(ctx context.Context, clusters []cluster.Cluster) []mergeGroup {
	var groups []mergeGroup
	for _, batch := range chunk(clusters, r.batchSize) {
		compact := make([]compactView, 0, len(batch))
		for _, c := range batch {
			compact = append(compact, compactView{
				Idx:       c.Idx,
				Service:   c.Service(),
				Component: c.Component,
				Message:   c.Message,
				Count:     c.Count,
			})
		}

		payload, err := json.MarshalIndent(compact, "", "  ")
		if err != nil {
			r.logger.Printf("marshal batch: %v", err)
			continue
		}

		prompt := buildPrompt(string(payload))
		raw, err := r.oracle.Complete(ctx, r.model, prompt)
		if err != nil {
			r.logger.Printf("oracle grouping failed: %v", err)
			continue
		}

		var resp mergeResponse
		if err := json.Unmarshal([]byte(oracle.ExtractJSON(raw)), &resp); err != nil {
			r.logger.Printf("unusable grouping response: %v", err)
			continue
		}
		for _, item := range resp.Groups {
			var g mergeGroup
			if err := json.Unmarshal(item, &g); err != nil {
				// groups that are not objects are dropped individually
				continue
			}
			groups = append(groups, g)
		}
	}
	return groups
}

func buildPrompt(clustersJSON string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nClusters (JSON list):\n")
	b.WriteString(clustersJSON)
	b.WriteString("\n\nReturn a single JSON object with key \"groups\" as described above.")
	return b.String()
}

func chunk(clusters []cluster.Cluster, size int) [][]cluster.Cluster {
	if size <= 0 || len(clusters) <= size {
		return [][]cluster.Cluster{clusters}
	}
	var out [][]cluster.Cluster
	for start := 0; start < len(clusters); start += size {
		end := start + size
		if end > len(clusters) {
			end = len(clusters)
		}
		out = append(out, clusters[start:end])
	}
	return out
}

func asInt(n json.Number) (int, bool) {
	v, err := n.Int64()
	if err != nil {
		// some models emit indices as floats
		f, ferr := n.Float64()
		if ferr != nil {
			return 0, false
		}
		return int(f), true
	}
	return int(v), true
}

func renumber(clusters []cluster.Cluster) []cluster.Cluster {
	out := make([]cluster.Cluster, len(clusters))
	for i, c := range clusters {
		c.Idx = i
		out[i] = c
	}
	return out
}
