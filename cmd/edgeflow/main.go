package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/edgeflow/internal/auth"
	"github.com/rakunlabs/edgeflow/internal/block"
	_ "github.com/rakunlabs/edgeflow/internal/block/blocks"
	"github.com/rakunlabs/edgeflow/internal/config"
	"github.com/rakunlabs/edgeflow/internal/engine"
	"github.com/rakunlabs/edgeflow/internal/graph"
	"github.com/rakunlabs/edgeflow/internal/logbuf"
	"github.com/rakunlabs/edgeflow/internal/manifest"
	"github.com/rakunlabs/edgeflow/internal/metrics"
	"github.com/rakunlabs/edgeflow/internal/server"
)

var (
	name    = "edgeflow"
	version = "v0.0.0"
)

func main() {
	config.Service = name + "/" + version

	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

// ///////////////////////////////////////////////////////////////////

// cliFlags are the command-line overrides layered on top of the loaded
// configuration.
type cliFlags struct {
	blockPaths []string
	rate       float64
	iterations uint64
	webPort    string
	webUser    string
	webPass    string
	noAuth     bool

	manifestPath string
}

func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Func("block-path", "additional block artifact search directory (repeatable)", func(v string) error {
		f.blockPaths = append(f.blockPaths, v)
		return nil
	})
	fs.Float64Var(&f.rate, "rate", 0, "target tick rate in Hz")
	fs.Uint64Var(&f.iterations, "iterations", 0, "stop after n ticks (0 = run until signal)")
	fs.StringVar(&f.webPort, "web-port", "", "HTTP surface port")
	fs.StringVar(&f.webUser, "web-user", "", "HTTP surface username")
	fs.StringVar(&f.webPass, "web-pass", "", "HTTP surface password")
	fs.BoolVar(&f.noAuth, "no-auth", false, "disable HTTP authentication")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f.manifestPath = fs.Arg(0)

	return f, nil
}

// apply layers the CLI flags over the loaded config.
func (f *cliFlags) apply(cfg *config.Config) {
	cfg.Runtime.BlockPaths = append(cfg.Runtime.BlockPaths, f.blockPaths...)

	if f.rate > 0 {
		cfg.Runtime.RateHz = f.rate
	}
	if f.iterations > 0 {
		cfg.Runtime.Iterations = f.iterations
	}
	if f.webPort != "" {
		cfg.Server.Port = f.webPort
	}
	if f.webUser != "" {
		cfg.Auth.Username = f.webUser
	}
	if f.webPass != "" {
		cfg.Auth.Password = f.webPass
	}
	if f.noAuth {
		cfg.Auth.Username = ""
		cfg.Auth.Password = ""
	}
	if f.manifestPath != "" {
		cfg.Manifest = f.manifestPath
	}
}

func run(ctx context.Context) error {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	flags.apply(cfg)

	if cfg.Manifest == "" {
		return fmt.Errorf("no manifest given; pass the manifest path as the first argument")
	}

	// Tee the process logger into the ring served on /api/logs.
	ring := logbuf.NewRing(cfg.Server.LogBufferSize)
	slog.SetDefault(slog.New(logbuf.NewHandler(slog.Default().Handler(), ring)))

	// ─── Pipeline construction ───

	m, err := manifest.Load(cfg.Manifest)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	slog.Info("manifest loaded", "platform", m.Platform, "nodes", len(m.Nodes), "connections", len(m.Connections))

	registry := block.NewRegistry(cfg.Runtime.BlockPaths...)
	defer registry.Close()

	g, err := graph.Build(m, registry)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}
	banner(g)

	// ─── Collaborators ───

	collector := metrics.NewCollector()

	authManager := auth.NewManager(config.Duration(cfg.Auth.TokenTTL, auth.DefaultTokenLifetime))
	if err := authManager.SetCredentials(cfg.Auth.Username, cfg.Auth.Password); err != nil {
		return fmt.Errorf("set credentials: %w", err)
	}

	eng := engine.New(g, collector, engine.Options{
		Rate:       cfg.Runtime.RateHz,
		Iterations: cfg.Runtime.Iterations,
	})
	ctrl := engine.NewController(ctx, eng)

	srv, err := server.New(cfg.Server, authManager, collector, ctrl, ring)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// ─── Run ───

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- srv.Start(ctx)
	}()

	eng.Initialize()
	ctrl.Start()

	select {
	case <-ctx.Done():
	case <-eng.Finished():
		slog.Info("iteration limit reached")
	case err := <-httpErr:
		if err != nil {
			ctrl.Stop()
			eng.Shutdown()
			return fmt.Errorf("http server: %w", err)
		}
	}

	// ─── Teardown ───

	ctrl.Stop()
	eng.Shutdown()

	st := eng.Status()
	slog.Info("final statistics", "ticks", st.Ticks, "lags", st.Lags)
	for _, b := range collector.Snapshot().Blocks {
		slog.Info("block statistics",
			"block", b.ID,
			"executions", b.ExecutionCount,
			"errors", b.ErrorCount,
			"avg_latency_ms", b.AvgLatencyMS,
		)
	}

	return nil
}

// banner logs the startup listing of loaded and skipped nodes.
func banner(g *graph.Graph) {
	slog.Info("pipeline graph ready", "nodes", len(g.Nodes), "execution_order", g.Order)

	for _, id := range g.Order {
		node := g.Nodes[id]
		slog.Info("node bound",
			"node_id", node.ID,
			"type", node.Type,
			"block", node.Descriptor.Key(),
			"origin", node.Handle.Origin,
		)
	}
	for _, sk := range g.Skipped {
		slog.Warn("node skipped", "node_id", sk.NodeID, "type", sk.Type, "reason", sk.Reason)
	}
}
