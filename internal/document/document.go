// Package document turns a workflow schema into an immutable, flattened
// graph of nodes, ports and edges.
package document

import (
	"fmt"
	"sort"

	"github.com/rendis/flowrun/pkg/schema"
)

// Document is the flattened graph of one workflow schema. Nested container
// bodies (loop blocks) are lifted into the same node and edge sets; each
// container remembers its direct children.
type Document struct {
	initialized bool
	nodes       []*Node
	byID        map[string]*Node
	edges       []*Edge
	children    map[string][]string
}

// New returns an uninitialized Document.
func New() *Document {
	return &Document{}
}

// Init parses ws. It may be called once; nodes are immutable afterwards.
func (d *Document) Init(ws *schema.WorkflowSchema) error {
	if ws == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow schema is nil")
	}

	d.nodes = nil
	d.edges = nil
	d.byID = make(map[string]*Node)
	d.children = make(map[string][]string)

	var edges []schema.EdgeSchema
	if err := d.flatten(ws.Nodes, nil, &edges); err != nil {
		return err
	}
	edges = append(edges, ws.Edges...)

	for _, n := range d.nodes {
		d.declarePorts(n)
	}
	for _, es := range edges {
		if err := d.wire(es); err != nil {
			return err
		}
	}

	d.initialized = true
	return nil
}

func (d *Document) flatten(list []schema.NodeSchema, parent *Node, edges *[]schema.EdgeSchema) error {
	for _, ns := range list {
		if ns.ID == "" {
			return schema.NewError(schema.ErrCodeValidation, "node without id")
		}
		if _, dup := d.byID[ns.ID]; dup {
			return schema.NewErrorf(schema.ErrCodeConflict, "duplicate node id %q", ns.ID)
		}

		decl, cfg, data, err := decodeConfig(ns)
		if err != nil {
			return schema.NewError(schema.ErrCodeValidation, err.Error()).WithNode(ns.ID).WithCause(err)
		}

		title := ns.ID
		if t, ok := data["title"].(string); ok && t != "" {
			title = t
		}

		node := &Node{
			ID:      ns.ID,
			Type:    ns.Type,
			Name:    title,
			Meta:    ns.Meta,
			Data:    data,
			Config:  cfg,
			Declare: decl,
			Parent:  parent,
		}
		d.nodes = append(d.nodes, node)
		d.byID[node.ID] = node

		if parent != nil {
			parent.Children = append(parent.Children, node)
			d.children[parent.ID] = append(d.children[parent.ID], node.ID)
		}

		if len(ns.Blocks) > 0 {
			if err := d.flatten(ns.Blocks, node, edges); err != nil {
				return err
			}
		}
		*edges = append(*edges, ns.Edges...)
	}
	return nil
}

func (d *Document) declarePorts(n *Node) {
	if n.Declare.Inputs != nil {
		for _, key := range sortedKeys(n.Declare.Inputs.Properties) {
			d.port(n, PortInput, key)
		}
	}
	if n.Declare.Outputs != nil {
		for _, key := range sortedKeys(n.Declare.Outputs.Properties) {
			d.port(n, PortOutput, key)
		}
	}
}

// port returns the node's port of the given type and key, creating it when
// it was not declared.
func (d *Document) port(n *Node, typ PortType, key string) *Port {
	switch typ {
	case PortInput:
		if p := n.InputPort(key); p != nil {
			return p
		}
	case PortOutput:
		if p := n.OutputPort(key); p != nil {
			return p
		}
	}

	p := &Port{
		ID:     fmt.Sprintf("%s:%s:%s", n.ID, typ, key),
		Type:   typ,
		NodeID: n.ID,
		Key:    key,
		node:   n,
	}
	if typ == PortInput {
		n.Ports.Inputs = append(n.Ports.Inputs, p)
	} else {
		n.Ports.Outputs = append(n.Ports.Outputs, p)
	}
	return p
}

func (d *Document) wire(es schema.EdgeSchema) error {
	from, ok := d.byID[es.SourceNodeID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "edge source node %q not found", es.SourceNodeID)
	}
	to, ok := d.byID[es.TargetNodeID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "edge target node %q not found", es.TargetNodeID)
	}

	sourceKey := es.SourcePortID
	if sourceKey == "" {
		sourceKey = schema.DefaultOutputPort
	}
	targetKey := es.TargetPortID
	if targetKey == "" {
		targetKey = schema.DefaultInputPort
	}

	src := d.port(from, PortOutput, sourceKey)
	dst := d.port(to, PortInput, targetKey)
	edge := &Edge{
		ID:   fmt.Sprintf("%s_%s-%s_%s", from.ID, sourceKey, to.ID, targetKey),
		From: src,
		To:   dst,
	}
	src.Edges = append(src.Edges, edge)
	dst.Edges = append(dst.Edges, edge)
	d.edges = append(d.edges, edge)

	if !containsNode(from.Next, to) {
		from.Next = append(from.Next, to)
	}
	if !containsNode(to.Prev, from) {
		to.Prev = append(to.Prev, from)
	}
	return nil
}

// Start returns the unique top-level start node.
func (d *Document) Start() (*Node, error) {
	if !d.initialized {
		return nil, schema.NewError(schema.ErrCodeInvalidState, "document is not initialized")
	}
	var start *Node
	for _, n := range d.nodes {
		if n.Type != schema.NodeTypeStart || n.Parent != nil {
			continue
		}
		if start != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConflict, "multiple start nodes: %s, %s", start.ID, n.ID)
		}
		start = n
	}
	if start == nil {
		return nil, schema.NewError(schema.ErrCodeNotFound, "start node not found")
	}
	return start, nil
}

// Node looks up a node by ID.
func (d *Document) Node(id string) (*Node, bool) {
	n, ok := d.byID[id]
	return n, ok
}

// NodesByType returns every node of type t, in schema order.
func (d *Document) NodesByType(t schema.NodeType) []*Node {
	var out []*Node
	for _, n := range d.nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Nodes returns every node, containers before their children.
func (d *Document) Nodes() []*Node {
	return d.nodes
}

// Edges returns every edge across all levels.
func (d *Document) Edges() []*Edge {
	return d.edges
}

// Children returns the ordered child IDs recorded for a container node.
func (d *Document) Children(containerID string) []string {
	return d.children[containerID]
}

// Initialized reports whether Init succeeded.
func (d *Document) Initialized() bool {
	return d.initialized
}

// Dispose drops the graph.
func (d *Document) Dispose() {
	d.initialized = false
	d.nodes = nil
	d.edges = nil
	d.byID = nil
	d.children = nil
}

func containsNode(list []*Node, n *Node) bool {
	for _, x := range list {
		if x == n {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]*schema.JSONSchema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
