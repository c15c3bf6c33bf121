package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/agent"
	"github.com/abhisek/snapask/internal/chunk"
	"github.com/abhisek/snapask/internal/config"
	"github.com/abhisek/snapask/internal/device"
	"github.com/abhisek/snapask/internal/ingest"
	"github.com/abhisek/snapask/internal/llm"
	"github.com/abhisek/snapask/internal/logging"
	"github.com/abhisek/snapask/internal/store"
)

// env holds what most commands share: settings, a logger and the event
// store.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	closeLog func() error
}

// setupOptions tweaks setup for a particular command.
type setupOptions struct {
	// quietStderr redirects stderr logs away while a full screen UI runs.
	quietStderr bool
}

// setup loads config, applies persistent flags, builds the logger and opens
// the store. Callers must defer env.Close.
func setup(cmd *cobra.Command, opts setupOptions) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	output := cfg.Log.Output
	if opts.quietStderr && (output == "" || output == "stderr") {
		output = "discard"
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: output,
	})
	if err != nil {
		return nil, fmt.Errorf("set up logging: %w", err)
	}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("open store: %w", err)
	}

	logger.Debug("store opened", zap.String("path", dbPath))
	return &env{cfg: cfg, logger: logger, store: st, closeLog: closeLog}, nil
}

// Close releases the store and flushes logs.
func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close store", zap.Error(err))
	}
	e.closeLog()
}

// resolveDBPath returns the database path using --db flag (highest
// priority), then the config file, then SNAPASK_DB and the default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg != nil && cfg.DB.Path != "" {
		return cfg.DB.Path, store.EnsureDir(cfg.DB.Path)
	}
	return store.DefaultDBPath()
}

// registry builds the vision backends from config.
func (e *env) registry() *llm.Registry {
	return llm.NewRegistry(e.cfg.LLMConfig(), e.store.EventRepo(), e.logger)
}

// newAgent creates a session. A non-empty model overrides the configured
// variant.
func (e *env) newAgent(reg *llm.Registry, model string) (*agent.Agent, error) {
	v := e.cfg.Variant()
	if model != "" {
		parsed, err := llm.ParseVariant(model)
		if err != nil {
			return nil, err
		}
		v = parsed
	}

	return agent.New(agent.Config{
		MaxPhotos: e.cfg.Agent.MaxPhotos,
		Variant:   v,
	}, reg,
		agent.WithLogger(e.logger),
		agent.WithRecorder(e.store.EventRepo()),
	), nil
}

// newPipeline wires reassembly and the photo window to the session.
func (e *env) newPipeline(sink ingest.Sink) *ingest.Pipeline {
	opts := []ingest.Option{
		ingest.WithLogger(e.logger),
		ingest.WithWindowSize(e.cfg.Window.Size),
	}
	if e.cfg.Device.MaxPhotoSize > 0 {
		opts = append(opts, ingest.WithReassemblerOptions(chunk.WithMaxPhotoSize(e.cfg.Device.MaxPhotoSize)))
	}
	return ingest.New(sink, opts...)
}

// newLink creates a device link for url, falling back to the configured
// bridge.
func (e *env) newLink(url string) (*device.Link, error) {
	if url == "" {
		url = e.cfg.Device.Bridge
	}
	if url == "" {
		return nil, fmt.Errorf("no camera bridge: pass --bridge or set device.bridge / SNAPASK_BRIDGE_URL")
	}
	cfg := device.DefaultConfig(url)
	cfg.MaxAttempts = e.cfg.Device.MaxAttempts

	opts := []device.Option{device.WithLogger(e.logger)}
	if len(e.cfg.Device.Headers) > 0 {
		h := http.Header{}
		for k, v := range e.cfg.Device.Headers {
			h.Set(k, v)
		}
		opts = append(opts, device.WithHeader(h))
	}
	return device.NewLink(cfg, opts...), nil
}
