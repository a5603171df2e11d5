// Package manifest parses and validates the declarative pipeline
// description consumed at startup. The parser is strict on schema and
// lenient on unknown fields: unrecognized keys survive a parse →
// serialize round trip but the runtime never interprets them.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ─── Error Taxonomy ───
//
// All three are fatal at load. Callers classify with errors.Is.

var (
	// ErrSyntax marks malformed JSON or YAML input.
	ErrSyntax = errors.New("manifest syntax")

	// ErrSchema marks a structurally valid document missing a required
	// field or carrying a field of the wrong type.
	ErrSchema = errors.New("manifest schema")

	// ErrReference marks a dangling node or descriptor reference.
	ErrReference = errors.New("manifest reference")
)

// Descriptor uniquely identifies the block binary to load.
type Descriptor struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// Key returns the registry cache key for this descriptor.
func (d Descriptor) Key() string { return d.ID + "-v" + d.Version }

// Node is a manifest-declared block instance.
type Node struct {
	ID     int               `json:"id"`
	Type   string            `json:"type"`
	Block  Descriptor        `json:"block"`
	Config map[string]string `json:"config"`

	// Extra holds unrecognized node-level keys, preserved for
	// forward compatibility.
	Extra map[string]json.RawMessage `json:"-"`
}

// Connection is a directed edge between two node pins.
type Connection struct {
	FromNodeID int    `json:"from_node_id"`
	FromPin    string `json:"from_pin"`
	ToNodeID   int    `json:"to_node_id"`
	ToPin      string `json:"to_pin"`
}

// Manifest is the immutable pipeline description.
type Manifest struct {
	Platform    string       `json:"platform"`
	Blocks      []Descriptor `json:"blocks"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`

	// Extra holds unrecognized top-level keys.
	Extra map[string]json.RawMessage `json:"-"`
}

// nodeKnownKeys and manifestKnownKeys drive unknown-field capture.
var (
	manifestKnownKeys = map[string]bool{"platform": true, "blocks": true, "nodes": true, "connections": true}
	nodeKnownKeys     = map[string]bool{"id": true, "type": true, "block": true, "config": true}
)

// Parse decodes and validates a JSON manifest document.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	m := &Manifest{}

	if err := requireField(raw, "platform", &m.Platform); err != nil {
		return nil, err
	}
	if err := requireField(raw, "blocks", &m.Blocks); err != nil {
		return nil, err
	}
	if err := requireField(raw, "connections", &m.Connections); err != nil {
		return nil, err
	}

	nodesRaw, ok := raw["nodes"]
	if !ok {
		return nil, fmt.Errorf("%w: missing required field %q", ErrSchema, "nodes")
	}
	var rawNodes []json.RawMessage
	if err := json.Unmarshal(nodesRaw, &rawNodes); err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", ErrSchema, "nodes", err)
	}
	for i, nr := range rawNodes {
		node, err := parseNode(nr)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		m.Nodes = append(m.Nodes, *node)
	}

	for key, val := range raw {
		if !manifestKnownKeys[key] {
			if m.Extra == nil {
				m.Extra = make(map[string]json.RawMessage)
			}
			m.Extra[key] = val
		}
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// parseNode decodes one node object, capturing unknown keys.
func parseNode(data json.RawMessage) (*Node, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	n := &Node{}

	if err := requireField(raw, "id", &n.ID); err != nil {
		return nil, err
	}
	if err := requireField(raw, "type", &n.Type); err != nil {
		return nil, err
	}

	// block is optional: when absent the graph builder resolves the
	// descriptor from the node type.
	if blockRaw, ok := raw["block"]; ok {
		if err := json.Unmarshal(blockRaw, &n.Block); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrSchema, "block", err)
		}
	}

	// config is optional; when present, keys and values must be strings.
	if cfgRaw, ok := raw["config"]; ok {
		if err := json.Unmarshal(cfgRaw, &n.Config); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrSchema, "config", err)
		}
	}
	if n.Config == nil {
		n.Config = map[string]string{}
	}

	for key, val := range raw {
		if !nodeKnownKeys[key] {
			if n.Extra == nil {
				n.Extra = make(map[string]json.RawMessage)
			}
			n.Extra[key] = val
		}
	}

	return n, nil
}

// requireField decodes raw[name] into dst, failing with ErrSchema when
// the field is missing or of the wrong type.
func requireField(raw map[string]json.RawMessage, name string, dst any) error {
	val, ok := raw[name]
	if !ok {
		return fmt.Errorf("%w: missing required field %q", ErrSchema, name)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrSchema, name, err)
	}
	return nil
}

// validate checks descriptor and connection references.
func (m *Manifest) validate() error {
	for i, d := range m.Blocks {
		if d.ID == "" || d.Version == "" {
			return fmt.Errorf("%w: block %d: id and version are required", ErrSchema, i)
		}
	}

	descriptors := make(map[Descriptor]bool, len(m.Blocks))
	for _, d := range m.Blocks {
		descriptors[d] = true
	}

	nodeIDs := make(map[int]bool, len(m.Nodes))
	for _, n := range m.Nodes {
		if nodeIDs[n.ID] {
			return fmt.Errorf("%w: duplicate node id %d", ErrSchema, n.ID)
		}
		nodeIDs[n.ID] = true

		if n.Block != (Descriptor{}) {
			if n.Block.ID == "" || n.Block.Version == "" {
				return fmt.Errorf("%w: node %d: block id and version are required", ErrSchema, n.ID)
			}
			if !descriptors[n.Block] {
				return fmt.Errorf("%w: node %d references undeclared block %s", ErrReference, n.ID, n.Block.Key())
			}
		}
	}

	for i, c := range m.Connections {
		if c.FromPin == "" || c.ToPin == "" {
			return fmt.Errorf("%w: connection %d: pin names must be non-empty", ErrSchema, i)
		}
		if !nodeIDs[c.FromNodeID] {
			return fmt.Errorf("%w: connection %d references unknown node %d", ErrReference, i, c.FromNodeID)
		}
		if !nodeIDs[c.ToNodeID] {
			return fmt.Errorf("%w: connection %d references unknown node %d", ErrReference, i, c.ToNodeID)
		}
	}

	return nil
}

// MarshalJSON re-serializes the manifest, merging preserved unknown
// keys back in. Map-based marshaling keeps key order deterministic, so
// parse → serialize → parse is idempotent.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, 4+len(m.Extra))

	var err error
	if out["platform"], err = json.Marshal(m.Platform); err != nil {
		return nil, err
	}
	if out["blocks"], err = json.Marshal(m.Blocks); err != nil {
		return nil, err
	}
	if out["connections"], err = json.Marshal(m.Connections); err != nil {
		return nil, err
	}

	nodes := make([]json.RawMessage, 0, len(m.Nodes))
	for i := range m.Nodes {
		nr, err := m.Nodes[i].marshal()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, nr)
	}
	if out["nodes"], err = json.Marshal(nodes); err != nil {
		return nil, err
	}

	for k, v := range m.Extra {
		out[k] = v
	}

	return json.Marshal(out)
}

// marshal serializes one node with its preserved unknown keys.
func (n *Node) marshal() (json.RawMessage, error) {
	out := make(map[string]json.RawMessage, 4+len(n.Extra))

	var err error
	if out["id"], err = json.Marshal(n.ID); err != nil {
		return nil, err
	}
	if out["type"], err = json.Marshal(n.Type); err != nil {
		return nil, err
	}
	if out["block"], err = json.Marshal(n.Block); err != nil {
		return nil, err
	}
	if out["config"], err = json.Marshal(n.Config); err != nil {
		return nil, err
	}

	for k, v := range n.Extra {
		out[k] = v
	}

	return json.Marshal(out)
}

// Node returns the node with the given id, or nil.
func (m *Manifest) Node(id int) *Node {
	for i := range m.Nodes {
		if m.Nodes[i].ID == id {
			return &m.Nodes[i]
		}
	}
	return nil
}
