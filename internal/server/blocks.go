package server

import (
	"net/http"
	"sort"

	"github.com/rakunlabs/edgeflow/internal/block"
)

// blockInfo describes one live node for the UI.
type blockInfo struct {
	NodeID     int         `json:"node_id"`
	NodeType   string      `json:"node_type"`
	BlockID    string      `json:"block_id"`
	Version    string      `json:"version"`
	Degraded   bool        `json:"degraded,omitempty"`
	InputPins  []block.Pin `json:"input_pins"`
	OutputPins []block.Pin `json:"output_pins"`
}

// blocksResponse wraps the node list for JSON output.
type blocksResponse struct {
	Blocks []blockInfo `json:"blocks"`
}

// ListBlocksAPI handles GET /api/blocks. Only nodes that made it into
// the graph are listed; skipped nodes are absent by design of the
// degraded-start behavior.
func (s *Server) ListBlocksAPI(w http.ResponseWriter, _ *http.Request) {
	g := s.ctrl.Engine().Graph()
	st := s.ctrl.Status()

	degraded := make(map[int]bool, len(st.Degraded))
	for _, id := range st.Degraded {
		degraded[id] = true
	}

	blocks := make([]blockInfo, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		blocks = append(blocks, blockInfo{
			NodeID:     node.ID,
			NodeType:   node.Type,
			BlockID:    node.Descriptor.ID,
			Version:    node.Descriptor.Version,
			Degraded:   degraded[node.ID],
			InputPins:  node.Block.InputPins(),
			OutputPins: node.Block.OutputPins(),
		})
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].NodeID < blocks[j].NodeID })

	httpResponseJSON(w, blocksResponse{Blocks: blocks}, http.StatusOK)
}
