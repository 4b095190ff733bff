// Command agentcore starts the AgentCore orchestration server: a
// provider-agnostic ReAct agent loop exposed over a single SSE chat
// endpoint, plus read-only tool/skill catalog listings.
//
// Usage:
//
//	agentcore serve --config config.yaml
//	agentcore serve --addr :9090 --log-level debug
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/agentcore/orchestrator/pkg/checkpoint"
	"github.com/agentcore/orchestrator/pkg/config"
	"github.com/agentcore/orchestrator/pkg/llms"
	"github.com/agentcore/orchestrator/pkg/logger"
	"github.com/agentcore/orchestrator/pkg/observability"
	"github.com/agentcore/orchestrator/pkg/server"
	"github.com/agentcore/orchestrator/pkg/tools"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve ServeCmd `cmd:"" help:"Start the orchestration server."`

	Config   string `short:"c" help:"Path to config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// ServeCmd starts the HTTP server hosting the SSE chat endpoint.
type ServeCmd struct {
	Addr string `help:"Override server.addr from config."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.Init(level, os.Stderr, "simple")
	log := logger.GetLogger()

	if err := config.LoadEnvFiles(); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	cfg, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	gateway := llms.NewGateway()
	if len(cfg.LLMs) == 0 {
		cfg.LLMs = map[string]*config.LLMProviderConfig{"demo": {Kind: config.LLMProviderDemo, Enabled: true}}
	}
	for id, providerCfg := range cfg.LLMs {
		providerCfg.SetDefaults()
		if err := gateway.Register(id, providerCfg); err != nil {
			return fmt.Errorf("register provider %q: %w", id, err)
		}
		log.Info("registered provider", "id", id, "kind", providerCfg.Kind)
	}

	catalog := tools.NewCatalog(cfg.Tools, nil, log)
	registry := tools.NewToolRegistry().WithCatalog(catalog)
	log.Info("tool catalog loaded", "count", len(cfg.Tools))

	checkpointEnabled := cfg.Checkpoint != nil
	checkpointMgr := checkpoint.NewManager(
		&checkpoint.Config{Enabled: &checkpointEnabled},
		checkpoint.NewMemoryBackend(),
	)

	store, err := newConversationStore(cfg.Conversations)
	if err != nil {
		return fmt.Errorf("conversation store: %w", err)
	}

	obsManager, err := observability.NewManager(ctx, nil)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer obsManager.Shutdown(context.Background())

	handler := &server.Handler{
		Gateway:    gateway,
		Tools:      registry,
		Skills:     cfg.Skills,
		Store:      store,
		Checkpoint: checkpointMgr,
		Config:     cfg.Server,
	}

	srv := server.New(cfg.Server, handler, obsManager)
	log.Info("agentcore server ready", "addr", cfg.Server.Addr)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Stop(shutdownCtx)
	}
}

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	var cfg *config.Config
	if path != "" {
		loaded, loader, err := config.LoadConfigFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		defer loader.Close()
		cfg = loaded
	} else {
		cfg = &config.Config{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newConversationStore(cfg *config.StoreConfig) (server.ConversationStore, error) {
	if cfg == nil || cfg.DSN == "" {
		return server.NewMemoryConversationStore(), nil
	}
	return server.NewSQLConversationStore(cfg)
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentcore"),
		kong.Description("AgentCore — provider-agnostic ReAct agent orchestration server"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
