package iocenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIOCenter_InputsAreImmutable(t *testing.T) {
	c := New()
	in := map[string]any{"x": "hello", "cfg": map[string]any{"t": 0.5}}
	c.Init(in)

	in["x"] = "changed"
	got := c.Inputs()
	assert.Equal(t, "hello", got["x"])

	got["cfg"].(map[string]any)["t"] = 1.0
	assert.Equal(t, 0.5, c.Inputs()["cfg"].(map[string]any)["t"])
}

func TestIOCenter_Outputs(t *testing.T) {
	c := New()
	c.Init(nil)
	assert.Empty(t, c.Outputs())
	assert.NotNil(t, c.Inputs())

	c.SetOutputs(map[string]any{"y": "first"})
	c.SetOutputs(map[string]any{"y": "second"})
	assert.Equal(t, map[string]any{"y": "second"}, c.Outputs())

	d := c.Export()
	assert.Equal(t, "second", d.Outputs["y"])
	assert.Empty(t, d.Inputs)

	c.Dispose()
	assert.Empty(t, c.Outputs())
}
