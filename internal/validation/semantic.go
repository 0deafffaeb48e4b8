package validation

import (
	"encoding/json"
	"fmt"

	"github.com/rendis/flowrun/pkg/schema"
)

// level is one graph scope: the top level or a container's body.
type level struct {
	path      string
	container *schema.NodeSchema
	nodes     []schema.NodeSchema
	edges     []schema.EdgeSchema
}

// levels returns the top level followed by every nested body, depth first.
func levels(ws *schema.WorkflowSchema) []level {
	var out []level
	var walk func(l level)
	walk = func(l level) {
		out = append(out, l)
		for i := range l.nodes {
			n := &l.nodes[i]
			if len(n.Blocks) == 0 && len(n.Edges) == 0 {
				continue
			}
			walk(level{
				path:      fmt.Sprintf("%s.nodes[%s].blocks", l.path, n.ID),
				container: n,
				nodes:     n.Blocks,
				edges:     n.Edges,
			})
		}
	}
	walk(level{path: "workflow", nodes: ws.Nodes, edges: ws.Edges})
	return out
}

// validateSemantic checks node placement, identity and per-type data.
func validateSemantic(ws *schema.WorkflowSchema, lookup TypeLookup) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	all := levels(ws)

	seen := make(map[string]string)
	for _, l := range all {
		for _, n := range l.nodes {
			if prev, dup := seen[n.ID]; dup {
				result.AddError(l.path, schema.ErrCodeConflict,
					fmt.Sprintf("duplicate node id %q (also in %s)", n.ID, prev))
				continue
			}
			seen[n.ID] = l.path
		}
	}

	var starts, ends int
	for _, l := range all {
		local := make(map[string]bool, len(l.nodes))
		for _, n := range l.nodes {
			local[n.ID] = true
		}

		for _, n := range l.nodes {
			path := fmt.Sprintf("%s.nodes[%s]", l.path, n.ID)
			switch n.Type {
			case schema.NodeTypeStart, schema.NodeTypeEnd:
				if l.container != nil {
					result.AddError(path, schema.ErrCodeValidation,
						fmt.Sprintf("%s node %q is not allowed inside a block", n.Type, n.ID))
				} else if n.Type == schema.NodeTypeStart {
					starts++
				} else {
					ends++
				}
			case schema.NodeTypeCondition:
				validateCondition(n, path, result)
			case schema.NodeTypeLoop:
				validateLoop(n, path, result)
			}
			if lookup != nil && !lookup.Has(n.Type) {
				result.AddError(path, schema.ErrCodeExecutorNotFound,
					fmt.Sprintf("no executor registered for node type %q", n.Type))
			}
			validateBindings(n, path, result)
		}

		for i, e := range l.edges {
			path := fmt.Sprintf("%s.edges[%d]", l.path, i)
			for _, id := range []string{e.SourceNodeID, e.TargetNodeID} {
				if local[id] {
					continue
				}
				if _, elsewhere := seen[id]; elsewhere {
					result.AddError(path, schema.ErrCodeValidation,
						fmt.Sprintf("edge crosses block boundary at node %q", id))
				} else {
					result.AddError(path, schema.ErrCodeNotFound,
						fmt.Sprintf("edge references unknown node %q", id))
				}
			}
		}
	}

	switch {
	case starts == 0:
		result.AddError("workflow.nodes", schema.ErrCodeValidation, "workflow has no start node")
	case starts > 1:
		result.AddError("workflow.nodes", schema.ErrCodeValidation,
			fmt.Sprintf("workflow has %d start nodes, expected exactly one", starts))
	}
	if ends == 0 {
		result.AddError("workflow.nodes", schema.ErrCodeValidation, "workflow has no end node")
	}
	return result
}

func validateCondition(n schema.NodeSchema, path string, result *schema.ValidationResult) {
	var data schema.ConditionData
	if err := decodeData(n, &data); err != nil {
		result.AddError(path+".data", schema.ErrCodeValidation, err.Error())
		return
	}
	if len(data.Conditions) == 0 {
		result.AddError(path+".data.conditions", schema.ErrCodeValidation, "condition node has no conditions")
		return
	}

	keys := make(map[string]bool, len(data.Conditions))
	for i, c := range data.Conditions {
		cpath := fmt.Sprintf("%s.data.conditions[%d]", path, i)
		switch {
		case c.Key == "":
			result.AddError(cpath, schema.ErrCodeValidation, "condition has no key")
		case keys[c.Key]:
			result.AddError(cpath, schema.ErrCodeConflict, fmt.Sprintf("duplicate condition key %q", c.Key))
		}
		keys[c.Key] = true

		if !c.Value.Operator.Valid() {
			result.AddError(cpath, schema.ErrCodeValidation,
				fmt.Sprintf("unknown condition operator %q", c.Value.Operator))
		}
		if c.Value.Left == nil {
			result.AddWarning(cpath, schema.ErrCodeValidation, "condition has no left operand")
		}
	}
}

func validateLoop(n schema.NodeSchema, path string, result *schema.ValidationResult) {
	var data schema.LoopData
	if err := decodeData(n, &data); err != nil {
		result.AddError(path+".data", schema.ErrCodeValidation, err.Error())
		return
	}
	if data.BatchFor == nil || data.BatchFor.Type != schema.FlowValueRef {
		result.AddError(path+".data.batchFor", schema.ErrCodeLoopInput, "loop batchFor must be a ref")
		return
	}
	if err := validateRefShape(data.BatchFor.Content); err != "" {
		result.AddError(path+".data.batchFor", schema.ErrCodeInvalidRef, err)
	}
	if len(n.Blocks) == 0 {
		result.AddWarning(path+".blocks", schema.ErrCodeValidation, "loop has an empty body")
	}
}

func validateBindings(n schema.NodeSchema, path string, result *schema.ValidationResult) {
	var data schema.NodeData
	if err := decodeData(n, &data); err != nil {
		result.AddError(path+".data", schema.ErrCodeValidation, err.Error())
		return
	}
	for key, fv := range data.InputsValues {
		bpath := fmt.Sprintf("%s.data.inputsValues.%s", path, key)
		switch fv.Type {
		case schema.FlowValueConstant:
			if !fv.HasContent() {
				result.AddError(bpath, schema.ErrCodeInvalidRef, "constant has no content")
			}
		case schema.FlowValueRef:
			if err := validateRefShape(fv.Content); err != "" {
				result.AddError(bpath, schema.ErrCodeInvalidRef, err)
			}
		}
	}
}

func validateRefShape(content any) string {
	segs, ok := content.([]any)
	if !ok {
		return "ref content must be an array"
	}
	if len(segs) < 2 {
		return "ref content needs at least [nodeID, key]"
	}
	for i, s := range segs {
		switch s.(type) {
		case string, float64:
		default:
			return fmt.Sprintf("ref segment %d must be a string or number", i)
		}
	}
	return ""
}

func decodeData(n schema.NodeSchema, v any) error {
	if len(n.Data) == 0 || string(n.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(n.Data, v); err != nil {
		return fmt.Errorf("node %q has malformed data: %w", n.ID, err)
	}
	return nil
}
