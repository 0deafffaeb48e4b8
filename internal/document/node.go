package document

import "github.com/rendis/flowrun/pkg/schema"

// PortType distinguishes input from output ports.
type PortType string

const (
	PortInput  PortType = "input"
	PortOutput PortType = "output"
)

// Port is a named connection point on a node.
type Port struct {
	ID     string
	Type   PortType
	NodeID string
	Key    string
	Edges  []*Edge

	node *Node
}

// Edge links an output port to an input port.
type Edge struct {
	ID   string
	From *Port
	To   *Port
}

// Ports groups a node's input and output ports in declaration order.
type Ports struct {
	Inputs  []*Port
	Outputs []*Port
}

// Declare carries the input/output declarations shared by all node types.
type Declare struct {
	Inputs       *schema.JSONSchema
	Outputs      *schema.JSONSchema
	InputsValues map[string]schema.FlowValue
}

// Node is an immutable vertex of the flattened graph. It is shared read-only
// by every run and sub-run of a document.
type Node struct {
	ID      string
	Type    schema.NodeType
	Name    string
	Meta    map[string]any
	Data    map[string]any
	Config  NodeConfig
	Declare Declare

	Prev  []*Node
	Next  []*Node
	Ports Ports

	Parent   *Node
	Children []*Node
}

// OutputPort returns the output port with the given key, or nil.
func (n *Node) OutputPort(key string) *Port {
	for _, p := range n.Ports.Outputs {
		if p.Key == key {
			return p
		}
	}
	return nil
}

// InputPort returns the input port with the given key, or nil.
func (n *Node) InputPort(key string) *Port {
	for _, p := range n.Ports.Inputs {
		if p.Key == key {
			return p
		}
	}
	return nil
}

// NextByPort returns the distinct nodes reached through the output port key.
func (n *Node) NextByPort(key string) []*Node {
	port := n.OutputPort(key)
	if port == nil {
		return nil
	}
	var out []*Node
	seen := make(map[*Node]bool)
	for _, e := range port.Edges {
		target := e.To.node
		if target == nil || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	return out
}

// IsContainer reports whether the node owns a body of child nodes.
func (n *Node) IsContainer() bool {
	return len(n.Children) > 0
}

// EntryChildren returns the children with no predecessor inside the body.
func (n *Node) EntryChildren() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if len(c.Prev) == 0 {
			out = append(out, c)
		}
	}
	return out
}
