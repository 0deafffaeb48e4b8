package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowrun/pkg/schema"
)

func parseSchema(t *testing.T, raw string) *schema.WorkflowSchema {
	t.Helper()
	var ws schema.WorkflowSchema
	require.NoError(t, json.Unmarshal([]byte(raw), &ws))
	return &ws
}

const conditionSchema = `{
	"nodes": [
		{"id": "start_0", "type": "start", "data": {"outputs": {"type": "object", "properties": {"list": {"type": "array", "items": {"type": "string"}}}}}},
		{"id": "condition_0", "type": "condition", "data": {"conditions": [
			{"key": "if_empty", "value": {"left": {"type": "ref", "content": ["start_0", "list"]}, "operator": "is_empty"}},
			{"key": "if_not_empty", "value": {"left": {"type": "ref", "content": ["start_0", "list"]}, "operator": "is_not_empty"}}
		]}},
		{"id": "llm_a", "type": "llm", "data": {}},
		{"id": "llm_b", "type": "llm", "data": {}},
		{"id": "end_0", "type": "end", "data": {}}
	],
	"edges": [
		{"sourceNodeID": "start_0", "targetNodeID": "condition_0"},
		{"sourceNodeID": "condition_0", "targetNodeID": "llm_a", "sourcePortID": "if_empty"},
		{"sourceNodeID": "condition_0", "targetNodeID": "llm_b", "sourcePortID": "if_not_empty"},
		{"sourceNodeID": "llm_a", "targetNodeID": "end_0"},
		{"sourceNodeID": "llm_b", "targetNodeID": "end_0"}
	]
}`

const loopSchema = `{
	"nodes": [
		{"id": "start_0", "type": "start", "data": {}},
		{"id": "loop_0", "type": "loop", "data": {"batchFor": {"type": "ref", "content": ["start_0", "items"]}},
		 "blocks": [
			{"id": "llm_0", "type": "llm", "data": {}},
			{"id": "llm_1", "type": "llm", "data": {}},
			{"id": "llm_2", "type": "llm", "data": {}}
		 ],
		 "edges": [{"sourceNodeID": "llm_0", "targetNodeID": "llm_1"}]},
		{"id": "end_0", "type": "end", "data": {}}
	],
	"edges": [
		{"sourceNodeID": "start_0", "targetNodeID": "loop_0"},
		{"sourceNodeID": "loop_0", "targetNodeID": "end_0"}
	]
}`

func TestDocument_StartBeforeInit(t *testing.T) {
	_, err := New().Start()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeInvalidState, schema.ErrorCode(err))
}

func TestDocument_Adjacency(t *testing.T) {
	doc := New()
	require.NoError(t, doc.Init(parseSchema(t, conditionSchema)))

	start, err := doc.Start()
	require.NoError(t, err)
	assert.Equal(t, "start_0", start.ID)
	require.Len(t, start.Next, 1)
	assert.Equal(t, "condition_0", start.Next[0].ID)

	end, ok := doc.Node("end_0")
	require.True(t, ok)
	require.Len(t, end.Prev, 2)
	assert.Equal(t, "llm_a", end.Prev[0].ID)
	assert.Equal(t, "llm_b", end.Prev[1].ID)

	cond, _ := doc.Node("condition_0")
	require.Len(t, cond.Next, 2)
	branchA := cond.NextByPort("if_empty")
	require.Len(t, branchA, 1)
	assert.Equal(t, "llm_a", branchA[0].ID)
	assert.Empty(t, cond.NextByPort("missing"))

	assert.Len(t, doc.Edges(), 5)
	assert.Len(t, doc.NodesByType(schema.NodeTypeLLM), 2)
}

func TestDocument_DefaultPorts(t *testing.T) {
	doc := New()
	require.NoError(t, doc.Init(parseSchema(t, conditionSchema)))

	start, _ := doc.Start()
	port := start.OutputPort(schema.DefaultOutputPort)
	require.NotNil(t, port)
	assert.Equal(t, PortOutput, port.Type)
	assert.Equal(t, "start_0", port.NodeID)
	require.Len(t, port.Edges, 1)
	assert.Equal(t, schema.DefaultInputPort, port.Edges[0].To.Key)

	// declared outputs create ports even without edges
	assert.NotNil(t, start.OutputPort("list"))
}

func TestDocument_TypedConfig(t *testing.T) {
	doc := New()
	require.NoError(t, doc.Init(parseSchema(t, conditionSchema)))

	cond, _ := doc.Node("condition_0")
	cfg, ok := cond.Config.(*ConditionConfig)
	require.True(t, ok)
	require.Len(t, cfg.Conditions, 2)
	assert.Equal(t, "if_empty", cfg.Conditions[0].Key)
	assert.Equal(t, schema.OpIsEmpty, cfg.Conditions[0].Value.Operator)

	start, _ := doc.Start()
	startCfg, ok := start.Config.(*StartConfig)
	require.True(t, ok)
	assert.Equal(t, schema.TypeArray, startCfg.Outputs.Property("list").Type)
	assert.Contains(t, start.Data, "outputs")
}

func TestDocument_FlattensLoopBlocks(t *testing.T) {
	doc := New()
	require.NoError(t, doc.Init(parseSchema(t, loopSchema)))

	assert.Len(t, doc.Nodes(), 5)
	assert.Equal(t, []string{"llm_0", "llm_1", "llm_2"}, doc.Children("loop_0"))

	loop, _ := doc.Node("loop_0")
	assert.True(t, loop.IsContainer())
	cfg, ok := loop.Config.(*LoopConfig)
	require.True(t, ok)
	require.NotNil(t, cfg.BatchFor)
	assert.Equal(t, schema.FlowValueRef, cfg.BatchFor.Type)

	entries := loop.EntryChildren()
	require.Len(t, entries, 2)
	assert.Equal(t, "llm_0", entries[0].ID)
	assert.Equal(t, "llm_2", entries[1].ID)

	body, _ := doc.Node("llm_1")
	assert.Equal(t, loop, body.Parent)
	require.Len(t, body.Prev, 1)
	assert.Equal(t, "llm_0", body.Prev[0].ID)

	// body nodes are not reachable from the outer chain
	start, _ := doc.Start()
	assert.Equal(t, "loop_0", start.Next[0].ID)
}

func TestDocument_InitErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code string
	}{
		{
			name: "duplicate id",
			raw:  `{"nodes": [{"id": "a", "type": "start"}, {"id": "a", "type": "end"}], "edges": []}`,
			code: schema.ErrCodeConflict,
		},
		{
			name: "unknown edge target",
			raw:  `{"nodes": [{"id": "a", "type": "start"}], "edges": [{"sourceNodeID": "a", "targetNodeID": "b"}]}`,
			code: schema.ErrCodeNotFound,
		},
		{
			name: "malformed condition data",
			raw:  `{"nodes": [{"id": "c", "type": "condition", "data": {"conditions": "nope"}}], "edges": []}`,
			code: schema.ErrCodeValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Init(parseSchema(t, tt.raw))
			require.Error(t, err)
			assert.Equal(t, tt.code, schema.ErrorCode(err))
		})
	}
}

func TestDocument_StartMissing(t *testing.T) {
	doc := New()
	require.NoError(t, doc.Init(parseSchema(t, `{"nodes": [{"id": "end_0", "type": "end"}], "edges": []}`)))
	_, err := doc.Start()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.ErrorCode(err))
}

func TestDocument_GenericConfigForUnknownType(t *testing.T) {
	doc := New()
	require.NoError(t, doc.Init(parseSchema(t, `{"nodes": [{"id": "x", "type": "custom", "data": {"foo": 1}}], "edges": []}`)))
	n, _ := doc.Node("x")
	cfg, ok := n.Config.(*GenericConfig)
	require.True(t, ok)
	assert.Equal(t, schema.NodeType("custom"), cfg.Type)
	assert.JSONEq(t, `{"foo": 1}`, string(cfg.Raw))
}
