package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMergeConflict is returned by MergeDedupRejectConflicts when an incoming
// node reuses an existing id with different content.
var ErrMergeConflict = errors.New("conflicting node id")

// MergeStrategy selects how incoming nodes and edges combine with an existing graph.
type MergeStrategy string

const (
	// MergeAppend concatenates both collections and keeps duplicate ids.
	MergeAppend MergeStrategy = "append"
	// MergeDedupLastWriteWins replaces existing nodes by id and skips identical edges.
	MergeDedupLastWriteWins MergeStrategy = "dedup_last_write_wins"
	// MergeDedupRejectConflicts ignores identical re-sent nodes and fails on differing ones.
	MergeDedupRejectConflicts MergeStrategy = "dedup_reject_conflicts"
)

// ParseMergeStrategy accepts the strategy names case-insensitively, with
// either '-' or '_' as separator. An empty value selects MergeAppend.
func ParseMergeStrategy(value string) (MergeStrategy, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.ReplaceAll(v, "-", "_")
	switch MergeStrategy(v) {
	case "", MergeAppend:
		return MergeAppend, nil
	case MergeDedupLastWriteWins:
		return MergeDedupLastWriteWins, nil
	case MergeDedupRejectConflicts:
		return MergeDedupRejectConflicts, nil
	}
	return "", fmt.Errorf("unknown merge strategy %q", value)
}

// MergeStats describes what a merge changed.
type MergeStats struct {
	AddedNodes    int
	ReplacedNodes int
	AddedEdges    int
}

// Merge combines existing and incoming into a new graph. Neither input is
// modified. On error the returned graph is empty and existing should be kept.
func Merge(existing, incoming Graph, strategy MergeStrategy) (Graph, MergeStats, error) {
	switch strategy {
	case "", MergeAppend:
		return mergeAppend(existing, incoming), MergeStats{
			AddedNodes: len(incoming.Nodes),
			AddedEdges: len(incoming.Edges),
		}, nil
	case MergeDedupLastWriteWins, MergeDedupRejectConflicts:
		return mergeByID(existing, incoming, strategy == MergeDedupRejectConflicts)
	}
	return Graph{}, MergeStats{}, fmt.Errorf("unknown merge strategy %q", strategy)
}

func mergeAppend(existing, incoming Graph) Graph {
	out := Graph{
		Nodes: make([]Node, 0, len(existing.Nodes)+len(incoming.Nodes)),
		Edges: make([]Edge, 0, len(existing.Edges)+len(incoming.Edges)),
	}
	out.Nodes = append(append(out.Nodes, existing.Nodes...), incoming.Nodes...)
	out.Edges = append(append(out.Edges, existing.Edges...), incoming.Edges...)
	return out
}

func mergeByID(existing, incoming Graph, rejectConflicts bool) (Graph, MergeStats, error) {
	var stats MergeStats
	out := existing.Clone()

	// first occurrence in existing wins
	index := make(map[string]int, len(out.Nodes)+len(incoming.Nodes))
	for i, n := range out.Nodes {
		if _, ok := index[n.ID]; !ok {
			index[n.ID] = i
		}
	}

	for _, n := range incoming.Nodes {
		pos, ok := index[n.ID]
		if !ok {
			index[n.ID] = len(out.Nodes)
			out.Nodes = append(out.Nodes, n)
			stats.AddedNodes++
			continue
		}
		if out.Nodes[pos] == n {
			continue
		}
		if rejectConflicts {
			return Graph{}, MergeStats{}, fmt.Errorf("%w: %q", ErrMergeConflict, n.ID)
		}
		out.Nodes[pos] = n
		stats.ReplacedNodes++
	}

	seen := make(map[Edge]struct{}, len(out.Edges)+len(incoming.Edges))
	for _, e := range out.Edges {
		seen[e] = struct{}{}
	}
	for _, e := range incoming.Edges {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out.Edges = append(out.Edges, e)
		stats.AddedEdges++
	}

	return out, stats, nil
}
