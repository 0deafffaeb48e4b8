package schema

import (
	"encoding/json"
	"fmt"
)

// Default port keys used when an edge omits sourcePortID/targetPortID.
const (
	DefaultOutputPort = "defaultOutput"
	DefaultInputPort  = "defaultInput"
)

// WorkflowSchema is the JSON wire format of a workflow graph.
type WorkflowSchema struct {
	Nodes []NodeSchema `json:"nodes"`
	Edges []EdgeSchema `json:"edges"`
}

// NodeSchema describes a single node. Container nodes (loop) carry their
// body in Blocks/Edges.
type NodeSchema struct {
	ID     string          `json:"id"`
	Type   NodeType        `json:"type"`
	Meta   map[string]any  `json:"meta,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Blocks []NodeSchema    `json:"blocks,omitempty"`
	Edges  []EdgeSchema    `json:"edges,omitempty"`
}

// EdgeSchema connects an output port of one node to an input port of another.
type EdgeSchema struct {
	SourceNodeID string `json:"sourceNodeID"`
	TargetNodeID string `json:"targetNodeID"`
	SourcePortID string `json:"sourcePortID,omitempty"`
	TargetPortID string `json:"targetPortID,omitempty"`
}

// NodeType enumerates the built-in node kinds. Other values are allowed as
// long as an executor is registered for them.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeEnd       NodeType = "end"
	NodeTypeLLM       NodeType = "llm"
	NodeTypeCondition NodeType = "condition"
	NodeTypeLoop      NodeType = "loop"
)

// NodeData holds the fields shared by every node type's data block.
type NodeData struct {
	Title        string               `json:"title,omitempty"`
	Inputs       *JSONSchema          `json:"inputs,omitempty"`
	Outputs      *JSONSchema          `json:"outputs,omitempty"`
	InputsValues map[string]FlowValue `json:"inputsValues,omitempty"`
}

// ConditionData is the data block of a condition node.
type ConditionData struct {
	NodeData
	Conditions []ConditionItem `json:"conditions"`
}

// LoopData is the data block of a loop node.
type LoopData struct {
	NodeData
	BatchFor *FlowValue `json:"batchFor,omitempty"`
}

// ConditionItem is one branch of a condition node. Key doubles as the
// output port key the branch routes through.
type ConditionItem struct {
	Key   string         `json:"key"`
	Value ConditionValue `json:"value"`
}

// ConditionValue is the comparison evaluated for one branch.
type ConditionValue struct {
	Left     *FlowValue        `json:"left,omitempty"`
	Operator ConditionOperator `json:"operator"`
	Right    *FlowValue        `json:"right,omitempty"`
}

// ConditionOperator is the closed set of comparison operators.
type ConditionOperator string

const (
	OpEq          ConditionOperator = "eq"
	OpNeq         ConditionOperator = "neq"
	OpGt          ConditionOperator = "gt"
	OpGte         ConditionOperator = "gte"
	OpLt          ConditionOperator = "lt"
	OpLte         ConditionOperator = "lte"
	OpIn          ConditionOperator = "in"
	OpNin         ConditionOperator = "nin"
	OpContains    ConditionOperator = "contains"
	OpNotContains ConditionOperator = "not_contains"
	OpIsEmpty     ConditionOperator = "is_empty"
	OpIsNotEmpty  ConditionOperator = "is_not_empty"
	OpIsTrue      ConditionOperator = "is_true"
	OpIsFalse     ConditionOperator = "is_false"
)

// Valid reports whether o is one of the supported operators.
func (o ConditionOperator) Valid() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin,
		OpContains, OpNotContains, OpIsEmpty, OpIsNotEmpty, OpIsTrue, OpIsFalse:
		return true
	}
	return false
}

// FlowValueType distinguishes literal values from references.
type FlowValueType string

const (
	FlowValueConstant FlowValueType = "constant"
	FlowValueRef      FlowValueType = "ref"
)

// FlowValue is either a literal ({type: constant, content: v}) or a
// reference ({type: ref, content: [nodeID, key, ...path]}).
type FlowValue struct {
	Type    FlowValueType `json:"type"`
	Content any           `json:"content"`

	// explicit is set when content was given, even as null.
	explicit bool
}

// HasContent reports whether content was given. An explicit JSON null
// counts; an absent key does not.
func (v FlowValue) HasContent() bool {
	return v.Content != nil || v.explicit
}

func (v *FlowValue) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*v = FlowValue{}
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &v.Type); err != nil {
			return fmt.Errorf("flow value type: %w", err)
		}
	}
	raw, ok := fields["content"]
	if !ok {
		return nil
	}
	v.explicit = true
	return json.Unmarshal(raw, &v.Content)
}

// Constant builds a constant FlowValue. Constant(nil) is the null literal.
func Constant(v any) FlowValue {
	return FlowValue{Type: FlowValueConstant, Content: v, explicit: true}
}

// Ref builds a reference FlowValue.
func Ref(nodeID, key string, path ...string) FlowValue {
	content := make([]any, 0, 2+len(path))
	content = append(content, nodeID, key)
	for _, p := range path {
		content = append(content, p)
	}
	return FlowValue{Type: FlowValueRef, Content: content}
}

// JSONSchema is the subset of JSON Schema used to declare node inputs and
// outputs.
type JSONSchema struct {
	Type       VariableType           `json:"type,omitempty"`
	Items      *JSONSchema            `json:"items,omitempty"`
	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
	Default    any                    `json:"default,omitempty"`
}

// Property returns the declared schema of a property, or nil.
func (s *JSONSchema) Property(key string) *JSONSchema {
	if s == nil || s.Properties == nil {
		return nil
	}
	return s.Properties[key]
}
