// Package blocks is the compiled-in block catalogue: self-contained
// sources, signal stages and sinks that need no external artifact.
// Each block registers its factory in init(), so importing this package
// for side effects is enough to make the catalogue loadable:
//
//	import _ "github.com/rakunlabs/edgeflow/internal/block/blocks"
package blocks

import (
	"strconv"

	"github.com/rakunlabs/edgeflow/internal/block"
	"github.com/rakunlabs/edgeflow/internal/value"
)

// Version is the catalogue version reported by every builtin block.
const Version = "1.0.0"

// configFloat reads a float config key, falling back to def when the
// key is absent. The second return is false on a malformed value, which
// blocks surface as a degraded Initialize.
func configFloat(config map[string]string, key string, def float64) (float64, bool) {
	raw, ok := config[key]
	if !ok || raw == "" {
		return def, true
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, false
	}

	return f, true
}

// configInt reads an integer config key with a default.
func configInt(config map[string]string, key string, def int) (int, bool) {
	raw, ok := config[key]
	if !ok || raw == "" {
		return def, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, false
	}

	return n, true
}

// inPin and outPin cut down pin-list boilerplate in the catalogue.
func inPin(name, typ string, def value.Value) block.Pin {
	return block.Pin{Name: name, Direction: block.In, Type: typ, Default: def}
}

func outPin(name, typ string, def value.Value) block.Pin {
	return block.Pin{Name: name, Direction: block.Out, Type: typ, Default: def}
}
