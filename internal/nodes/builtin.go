package nodes

import (
	"github.com/rendis/flowrun/internal/engine"
	"github.com/rendis/flowrun/internal/llm"
)

// Builtin returns the executors for every built-in node type.
func Builtin(client llm.Client) []engine.NodeExecutor {
	return []engine.NodeExecutor{
		Start{},
		End{},
		NewLLM(client),
		NewCondition(),
		Loop{},
	}
}

// NewExecutor returns an engine.Executor with every built-in type registered.
func NewExecutor(client llm.Client) (*engine.Executor, error) {
	return engine.NewExecutor(Builtin(client)...)
}
