package block

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"runtime"
	"slices"
	"sync"

	"github.com/rakunlabs/edgeflow/internal/manifest"
)

// ─── Error Taxonomy ───

var (
	// ErrArtifactMissing means no artifact was found on the search path.
	// Non-fatal during graph build: the node is skipped.
	ErrArtifactMissing = errors.New("block artifact missing")

	// ErrSymbolMissing means the artifact lacks the factory or the
	// destructor, or exports one of them with the wrong signature. Fatal
	// at load.
	ErrSymbolMissing = errors.New("block symbol missing")

	// ErrVersionMismatch means the factory-reported id or version
	// disagrees with the requested descriptor. Fatal at load.
	ErrVersionMismatch = errors.New("block version mismatch")
)

// DefaultSearchDir is the platform default artifact directory, consulted
// after all caller-provided directories.
const DefaultSearchDir = "/usr/lib/edgeflow/blocks"

// ─── Builtin Catalogue ───

// builtins maps block ids to compiled-in factories. Populated by init()
// functions in the blocks package, the same way node types register
// themselves in a workflow engine.
var (
	builtinMu sync.Mutex
	builtins  = make(map[string]Factory)
)

// RegisterBuiltin registers a compiled-in block factory under its id.
// Called from init() functions; last registration wins.
func RegisterBuiltin(id string, factory Factory) {
	builtinMu.Lock()
	builtins[id] = factory
	builtinMu.Unlock()
}

// builtinFactory returns the builtin factory for id, or nil.
func builtinFactory(id string) Factory {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	return builtins[id]
}

// ─── Handle ───

// Handle is an owned reference to a resolved factory/destructor pair.
// The registry keeps handles alive until Close.
type Handle struct {
	Descriptor manifest.Descriptor
	Origin     string // "builtin" or the artifact path

	factory Factory
	destroy Destructor
}

// New creates a fresh block instance.
func (h *Handle) New() Block { return h.factory() }

// Destroy releases an instance created by New. Safe to call with a nil
// destructor.
func (h *Handle) Destroy(b Block) {
	if h.destroy != nil {
		h.destroy(b)
	}
}

// ─── Registry ───

// Registry resolves (id, version) descriptors to loaded factories.
// Loads are cached: the second request for the same descriptor returns
// the cached handle. Safe for concurrent use.
type Registry struct {
	searchDirs []string

	mu      sync.Mutex
	handles map[string]*Handle
	order   []*Handle // load order, for reverse unload
}

// NewRegistry creates a registry that searches the given directories
// before the platform default.
func NewRegistry(searchDirs ...string) *Registry {
	return &Registry{
		searchDirs: append(slices.Clone(searchDirs), DefaultSearchDir),
		handles:    make(map[string]*Handle),
	}
}

// Load resolves a descriptor to a handle, loading the backing artifact
// on first use. Builtin factories take precedence over artifacts so a
// stripped-down deployment still runs the standard catalogue.
func (r *Registry) Load(d manifest.Descriptor) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[d.Key()]; ok {
		return h, nil
	}

	h, err := r.load(d)
	if err != nil {
		return nil, err
	}

	r.handles[d.Key()] = h
	r.order = append(r.order, h)

	slog.Info("block loaded", "id", d.ID, "version", d.Version, "origin", h.Origin)

	return h, nil
}

// load resolves without touching the cache. Caller holds r.mu.
func (r *Registry) load(d manifest.Descriptor) (*Handle, error) {
	if factory := builtinFactory(d.ID); factory != nil {
		h := &Handle{Descriptor: d, Origin: "builtin", factory: factory}
		if err := verify(h, d); err != nil {
			return nil, err
		}
		return h, nil
	}

	path, err := r.findArtifact(d)
	if err != nil {
		return nil, err
	}

	return loadArtifact(path, d)
}

// findArtifact walks the search directories for the descriptor's
// artifact file.
func (r *Registry) findArtifact(d manifest.Descriptor) (string, error) {
	name := ArtifactName(d)
	for _, dir := range r.searchDirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: %s not found in %v", ErrArtifactMissing, name, r.searchDirs)
}

// loadArtifact opens a shared object and resolves its factory and
// destructor symbols.
func loadArtifact(path string, d manifest.Descriptor) (*Handle, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", path, err)
	}

	sym, err := p.Lookup(SymbolFactory)
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no %s", ErrSymbolMissing, path, SymbolFactory)
	}
	factory, ok := sym.(func() Block)
	if !ok {
		return nil, fmt.Errorf("%w: %s: %s has wrong signature", ErrSymbolMissing, path, SymbolFactory)
	}

	dsym, err := p.Lookup(SymbolDestructor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no %s", ErrSymbolMissing, path, SymbolDestructor)
	}
	destroy, ok := dsym.(func(Block))
	if !ok {
		return nil, fmt.Errorf("%w: %s: %s has wrong signature", ErrSymbolMissing, path, SymbolDestructor)
	}

	h := &Handle{Descriptor: d, Origin: path, factory: factory, destroy: destroy}

	if err := verify(h, d); err != nil {
		return nil, err
	}

	return h, nil
}

// verify instantiates a probe and checks the factory's self-reported
// identity against the request.
func verify(h *Handle, d manifest.Descriptor) error {
	probe := h.New()
	defer h.Destroy(probe)

	if probe.ID() != d.ID || probe.Version() != d.Version {
		return fmt.Errorf("%w: requested %s, factory reports %s-v%s",
			ErrVersionMismatch, d.Key(), probe.ID(), probe.Version())
	}

	return nil
}

// Handles returns the loaded handles in load order.
func (r *Registry) Handles() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Close releases artifact handles in load-reverse order. Go cannot
// unload a loaded plugin, so this only drops the registry's references
// and logs; the OS reclaims mappings at process exit.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		h := r.order[i]
		slog.Debug("block unloaded", "id", h.Descriptor.ID, "version", h.Descriptor.Version)
		delete(r.handles, h.Descriptor.Key())
	}
	r.order = nil
}

// ArtifactName returns the platform artifact filename for a descriptor:
// <id>-v<version>.<platform-extension>.
func ArtifactName(d manifest.Descriptor) string {
	return d.ID + "-v" + d.Version + platformExt()
}

func platformExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}
