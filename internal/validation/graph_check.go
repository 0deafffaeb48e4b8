package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/flowrun/pkg/schema"
)

// validateGraph runs cycle detection (Kahn's algorithm) on every level and
// reports top-level nodes not reachable from the start node.
func validateGraph(ws *schema.WorkflowSchema) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	for _, l := range levels(ws) {
		ids := make([]string, 0, len(l.nodes))
		for _, n := range l.nodes {
			ids = append(ids, n.ID)
		}
		next := adjacency(l)

		if cyclic := kahn(ids, next); len(cyclic) > 0 {
			result.AddError(l.path, schema.ErrCodeCycleDetected,
				fmt.Sprintf("graph contains a cycle through %v", cyclic))
			continue
		}

		if l.container != nil {
			continue
		}
		var start string
		for _, n := range l.nodes {
			if n.Type == schema.NodeTypeStart {
				start = n.ID
				break
			}
		}
		if start == "" {
			continue
		}
		reachable := bfs(start, next)
		for _, id := range ids {
			if !reachable[id] {
				result.AddWarning(fmt.Sprintf("%s.nodes[%s]", l.path, id), schema.ErrCodeValidation,
					fmt.Sprintf("node %q is unreachable from the start node", id))
			}
		}
	}
	return result
}

func adjacency(l level) map[string][]string {
	local := make(map[string]bool, len(l.nodes))
	for _, n := range l.nodes {
		local[n.ID] = true
	}
	next := make(map[string][]string, len(l.nodes))
	seen := make(map[[2]string]bool, len(l.edges))
	for _, e := range l.edges {
		key := [2]string{e.SourceNodeID, e.TargetNodeID}
		if !local[e.SourceNodeID] || !local[e.TargetNodeID] || seen[key] {
			continue // bad refs already caught by semantic
		}
		seen[key] = true
		next[e.SourceNodeID] = append(next[e.SourceNodeID], e.TargetNodeID)
	}
	return next
}

// kahn returns the sorted IDs left over after a topological sort; they are
// on or behind a cycle.
func kahn(ids []string, next map[string][]string) []string {
	inDegree := make(map[string]int, len(ids))
	for _, id := range ids {
		for _, to := range next[id] {
			inDegree[to]++
		}
	}

	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	visited := make(map[string]bool, len(ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited[id] = true
		for _, to := range next[id] {
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	var left []string
	for _, id := range ids {
		if !visited[id] {
			left = append(left, id)
		}
	}
	sort.Strings(left)
	return left
}

func bfs(root string, next map[string][]string) map[string]bool {
	reachable := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, to := range next[id] {
			if !reachable[to] {
				reachable[to] = true
				queue = append(queue, to)
			}
		}
	}
	return reachable
}
