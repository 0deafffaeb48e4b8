package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/rendis/flowrun/internal/engine"
	"github.com/rendis/flowrun/internal/llm"
	"github.com/rendis/flowrun/pkg/schema"
)

var llmRequiredInputs = []string{"modelName", "temperature", "apiKey", "apiHost", "prompt"}

// LLM sends its prompt to a chat-completion API and outputs {result}.
type LLM struct {
	client llm.Client
}

// NewLLM creates an LLM executor using client.
func NewLLM(client llm.Client) *LLM {
	return &LLM{client: client}
}

// Type implements engine.NodeExecutor.
func (*LLM) Type() schema.NodeType { return schema.NodeTypeLLM }

// Execute implements engine.NodeExecutor.
func (l *LLM) Execute(ctx context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	var missing []string
	for _, key := range llmRequiredInputs {
		if _, ok := ec.Inputs[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, schema.NewErrorf(schema.ErrCodeMissingInputs,
			"LLM node missing required inputs: %s", strings.Join(missing, ", ")).
			WithNode(ec.Node.ID)
	}

	temperature, ok := schema.AsFloat64(ec.Inputs["temperature"])
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "LLM node temperature: expected a number, got %T",
			ec.Inputs["temperature"]).WithNode(ec.Node.ID)
	}

	req := llm.Request{
		ModelName:   fmt.Sprint(ec.Inputs["modelName"]),
		APIKey:      fmt.Sprint(ec.Inputs["apiKey"]),
		APIHost:     fmt.Sprint(ec.Inputs["apiHost"]),
		Temperature: temperature,
		Prompt:      fmt.Sprint(ec.Inputs["prompt"]),
	}
	if sp, ok := ec.Inputs["systemPrompt"]; ok && sp != nil {
		req.SystemPrompt = fmt.Sprint(sp)
	}

	result, err := l.client.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return &engine.ExecutionResult{Outputs: map[string]any{"result": result}}, nil
}
