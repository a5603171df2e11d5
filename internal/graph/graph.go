// Package graph resolves a manifest into an executable graph: nodes
// bound to block instances, validated connections, and a topological
// execution order.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rakunlabs/edgeflow/internal/block"
	"github.com/rakunlabs/edgeflow/internal/manifest"
	"github.com/rakunlabs/edgeflow/internal/value"
)

// ─── Error Taxonomy ───

var (
	// ErrCyclic means the connection relation contains a cycle. Fatal;
	// no block is initialized.
	ErrCyclic = errors.New("graph cyclic")

	// ErrUnknownNode means a connection names a pin that the
	// instantiated block does not declare. Connections whose endpoint
	// node is absent from the graph are dropped, not reported.
	ErrUnknownNode = errors.New("graph unknown node")

	// ErrFanIn means two connections target the same input pin.
	ErrFanIn = errors.New("graph input fan-in")
)

// Node is a runtime-bound block instance with its per-tick buffers.
type Node struct {
	ID         int
	Type       string
	Descriptor manifest.Descriptor
	Config     map[string]string

	Block  block.Block
	Handle *block.Handle

	// InitOK is set by the scheduler after Initialize. A false value
	// marks a degraded node that is still ticked.
	InitOK bool

	// InputValues and OutputValues are the per-tick transport buffers,
	// indexed by pin name. OutputValues holds the previous tick's
	// harvest until the next propagate phase.
	InputValues  map[string]value.Value
	OutputValues map[string]value.Value

	inputPins  map[string]block.Pin
	outputPins map[string]block.Pin
}

// InputPin returns the declared input pin, if any.
func (n *Node) InputPin(name string) (block.Pin, bool) {
	p, ok := n.inputPins[name]
	return p, ok
}

// OutputPin returns the declared output pin, if any.
func (n *Node) OutputPin(name string) (block.Pin, bool) {
	p, ok := n.outputPins[name]
	return p, ok
}

// Skipped records a manifest node excluded from the graph, with the
// reason: the artifact load error, or an unresolved block type.
type Skipped struct {
	NodeID int
	Type   string
	Reason string
}

// Graph is the executable pipeline: nodes keyed by integer id plus a
// topological execution order. Immutable after Build.
type Graph struct {
	Nodes       map[int]*Node
	Connections []manifest.Connection
	Order       []int
	Skipped     []Skipped
}

// typeAliases is the canonical mapping from well-known authoring type
// strings to block ids. It is authoritative: consulted before the
// substring fallback.
var typeAliases = map[string]string{
	"source.constant":             "const-source",
	"source.sine":                 "sine-source",
	"process.add_one":             "add-one",
	"process.scale":               "scale",
	"process.moving_average":      "moving-average",
	"process.threshold":           "threshold",
	"output.sink":                 "sink",
	"input.accelerometer.adxl345": "adxl345-sensor",
}

// Build binds manifest nodes to block instances via the registry,
// validates the wiring and computes the execution order.
//
// A node whose artifact is missing or whose type cannot be resolved is
// skipped with a warning; the graph still constructs with the remaining
// nodes so a partial pipeline can run. Every other load error is fatal.
func Build(m *manifest.Manifest, reg *block.Registry) (*Graph, error) {
	g := &Graph{Nodes: make(map[int]*Node, len(m.Nodes))}

	for i := range m.Nodes {
		mn := &m.Nodes[i]

		desc, ok := resolveDescriptor(mn, m.Blocks)
		if !ok {
			slog.Warn("node type unresolved, skipping node", "node_id", mn.ID, "type", mn.Type)
			g.Skipped = append(g.Skipped, Skipped{NodeID: mn.ID, Type: mn.Type, Reason: "block type unresolved"})
			continue
		}

		h, err := reg.Load(desc)
		if err != nil {
			if errors.Is(err, block.ErrArtifactMissing) {
				slog.Warn("block artifact missing, skipping node", "node_id", mn.ID, "block", desc.Key(), "error", err)
				g.Skipped = append(g.Skipped, Skipped{NodeID: mn.ID, Type: mn.Type, Reason: err.Error()})
				continue
			}
			return nil, fmt.Errorf("node %d: load block %s: %w", mn.ID, desc.Key(), err)
		}

		node, err := newNode(mn, desc, h)
		if err != nil {
			return nil, err
		}

		g.Nodes[mn.ID] = node
	}

	if err := g.wire(m.Connections); err != nil {
		return nil, err
	}

	order, err := topoSort(g.Nodes, g.Connections)
	if err != nil {
		return nil, err
	}
	g.Order = order

	return g, nil
}

// resolveDescriptor maps a manifest node to the block descriptor to
// load. An explicit block reference always wins; otherwise the alias
// table is consulted, then a substring match of any declared descriptor
// id inside the node type.
func resolveDescriptor(n *manifest.Node, declared []manifest.Descriptor) (manifest.Descriptor, bool) {
	if n.Block != (manifest.Descriptor{}) {
		return n.Block, true
	}

	if id, ok := typeAliases[n.Type]; ok {
		if d, ok := declaredByID(declared, id); ok {
			return d, true
		}
	}

	for _, d := range declared {
		if strings.Contains(n.Type, d.ID) {
			return d, true
		}
	}

	return manifest.Descriptor{}, false
}

func declaredByID(declared []manifest.Descriptor, id string) (manifest.Descriptor, bool) {
	for _, d := range declared {
		if d.ID == id {
			return d, true
		}
	}
	return manifest.Descriptor{}, false
}

// newNode instantiates a block and indexes its pins.
func newNode(mn *manifest.Node, desc manifest.Descriptor, h *block.Handle) (*Node, error) {
	inst := h.New()

	node := &Node{
		ID:           mn.ID,
		Type:         mn.Type,
		Descriptor:   desc,
		Config:       mn.Config,
		Block:        inst,
		Handle:       h,
		InputValues:  make(map[string]value.Value),
		OutputValues: make(map[string]value.Value),
		inputPins:    make(map[string]block.Pin),
		outputPins:   make(map[string]block.Pin),
	}

	for _, p := range inst.InputPins() {
		if _, dup := node.inputPins[p.Name]; dup {
			return nil, fmt.Errorf("node %d: duplicate input pin %q", mn.ID, p.Name)
		}
		node.inputPins[p.Name] = p
	}
	for _, p := range inst.OutputPins() {
		if _, dup := node.outputPins[p.Name]; dup {
			return nil, fmt.Errorf("node %d: duplicate output pin %q", mn.ID, p.Name)
		}
		node.outputPins[p.Name] = p
	}

	return node, nil
}

// wire validates connections against the instantiated pins and keeps
// the ones whose endpoints survived node skipping.
func (g *Graph) wire(connections []manifest.Connection) error {
	seen := make(map[string]bool, len(connections)) // "<to_node>/<to_pin>" fan-in guard

	for _, c := range connections {
		src, srcOK := g.Nodes[c.FromNodeID]
		dst, dstOK := g.Nodes[c.ToNodeID]

		if !srcOK || !dstOK {
			// One endpoint was skipped at load; the connection is
			// dropped so the partial pipeline can still run.
			slog.Warn("dropping connection to skipped node",
				"from", c.FromNodeID, "to", c.ToNodeID)
			continue
		}

		if _, ok := src.OutputPin(c.FromPin); !ok {
			return fmt.Errorf("%w: node %d has no output pin %q", ErrUnknownNode, c.FromNodeID, c.FromPin)
		}
		if _, ok := dst.InputPin(c.ToPin); !ok {
			return fmt.Errorf("%w: node %d has no input pin %q", ErrUnknownNode, c.ToNodeID, c.ToPin)
		}

		key := fmt.Sprintf("%d/%s", c.ToNodeID, c.ToPin)
		if seen[key] {
			return fmt.Errorf("%w: input pin %s targeted by multiple connections", ErrFanIn, key)
		}
		seen[key] = true

		g.Connections = append(g.Connections, c)
	}

	return nil
}

// topoSort orders node ids with Kahn's algorithm. Ids with equal
// in-degree are visited in ascending order so the result is
// deterministic across runs.
func topoSort(nodes map[int]*Node, connections []manifest.Connection) ([]int, error) {
	inDegree := make(map[int]int, len(nodes))
	adjacency := make(map[int][]int, len(nodes))

	for id := range nodes {
		inDegree[id] = 0
	}
	for _, c := range connections {
		adjacency[c.FromNodeID] = append(adjacency[c.FromNodeID], c.ToNodeID)
		inDegree[c.ToNodeID]++
	}

	var queue []int
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Ints(queue)

	var order []int
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		next := adjacency[current]
		sort.Ints(next)
		for _, neighbor := range next {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, fmt.Errorf("%w: %d of %d nodes unreachable from a zero in-degree start", ErrCyclic, len(nodes)-len(order), len(nodes))
	}

	return order, nil
}
