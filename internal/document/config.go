package document

import (
	"encoding/json"
	"fmt"

	"github.com/rendis/flowrun/pkg/schema"
)

// NodeConfig is the typed, per-type view of a node's data block.
type NodeConfig interface {
	nodeType() schema.NodeType
}

// StartConfig configures a start node.
type StartConfig struct {
	Outputs *schema.JSONSchema
}

// EndConfig configures an end node.
type EndConfig struct {
	Inputs *schema.JSONSchema
}

// LLMConfig configures an llm node. All request parameters arrive as
// resolved inputs.
type LLMConfig struct {
	Inputs *schema.JSONSchema
}

// ConditionConfig configures a condition node.
type ConditionConfig struct {
	Conditions []schema.ConditionItem
}

// LoopConfig configures a loop node.
type LoopConfig struct {
	BatchFor *schema.FlowValue
}

// GenericConfig is used for node types without a dedicated config.
type GenericConfig struct {
	Type schema.NodeType
	Raw  json.RawMessage
}

func (StartConfig) nodeType() schema.NodeType { return schema.NodeTypeStart }
func (EndConfig) nodeType() schema.NodeType { return schema.NodeTypeEnd }
func (LLMConfig) nodeType() schema.NodeType { return schema.NodeTypeLLM }
func (ConditionConfig) nodeType() schema.NodeType { return schema.NodeTypeCondition }
func (LoopConfig) nodeType() schema.NodeType { return schema.NodeTypeLoop }
func (c GenericConfig) nodeType() schema.NodeType { return c.Type }

// decodeConfig decodes raw node data into the shared declarations, the
// typed config and the untyped map kept for snapshots.
func decodeConfig(ns schema.NodeSchema) (Declare, NodeConfig, map[string]any, error) {
	raw := ns.Data
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return Declare{}, nil, nil, fmt.Errorf("decode data: %w", err)
	}

	var common schema.NodeData
	if err := json.Unmarshal(raw, &common); err != nil {
		return Declare{}, nil, nil, fmt.Errorf("decode data: %w", err)
	}
	decl := Declare{
		Inputs:       common.Inputs,
		Outputs:      common.Outputs,
		InputsValues: common.InputsValues,
	}

	var cfg NodeConfig
	switch ns.Type {
	case schema.NodeTypeStart:
		cfg = &StartConfig{Outputs: common.Outputs}
	case schema.NodeTypeEnd:
		cfg = &EndConfig{Inputs: common.Inputs}
	case schema.NodeTypeLLM:
		cfg = &LLMConfig{Inputs: common.Inputs}
	case schema.NodeTypeCondition:
		var cd schema.ConditionData
		if err := json.Unmarshal(raw, &cd); err != nil {
			return Declare{}, nil, nil, fmt.Errorf("decode condition data: %w", err)
		}
		cfg = &ConditionConfig{Conditions: cd.Conditions}
	case schema.NodeTypeLoop:
		var ld schema.LoopData
		if err := json.Unmarshal(raw, &ld); err != nil {
			return Declare{}, nil, nil, fmt.Errorf("decode loop data: %w", err)
		}
		cfg = &LoopConfig{BatchFor: ld.BatchFor}
	default:
		cfg = &GenericConfig{Type: ns.Type, Raw: raw}
	}
	return decl, cfg, data, nil
}
