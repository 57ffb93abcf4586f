// Anota is a personal note-taking assistant reached through a
// messaging gateway or a small HTTP API.
//
// It routes each inbound message (fast heuristics first, an LLM
// classifier as fallback), runs a bounded tool-calling loop against a
// SQLite datastore, and replies in plain text. Configuration is loaded
// from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	anota serve              Start the API server (and gateway bridge, if enabled)
//	anota ask <message>      Process a single message (for testing)
//	anota version            Print version and build information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dvmoura/anota/internal/agent"
	"github.com/dvmoura/anota/internal/api"
	"github.com/dvmoura/anota/internal/buildinfo"
	"github.com/dvmoura/anota/internal/config"
	"github.com/dvmoura/anota/internal/gateway"
	"github.com/dvmoura/anota/internal/llm"
	"github.com/dvmoura/anota/internal/router"
	"github.com/dvmoura/anota/internal/session"
	"github.com/dvmoura/anota/internal/snapshot"
	"github.com/dvmoura/anota/internal/store"
	"github.com/dvmoura/anota/internal/tools"
	"github.com/dvmoura/anota/internal/worker"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run] so the full
// startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the anota command. Arguments are
// parsed by hand: the flag package relies on package-level globals,
// which makes concurrent calls from tests impossible, and the argument
// surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: anota ask <message>")
		}
		return runAsk(ctx, stdout, configPath, strings.Join(cmdArgs, " "))
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Anota - personal note-taking assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: anota [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server and gateway bridge")
	fmt.Fprintln(w, "  ask          Process a single message (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format for version: text (default) or json")
	return nil
}

func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

func loadConfig(explicit string) (*config.Config, string, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, path, nil
}

// deps bundles the wired application for serve and ask.
type deps struct {
	store    *store.Store
	pipeline *agent.Pipeline
}

func buildDeps(cfg *config.Config, logger *slog.Logger) (*deps, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.New(filepath.Join(cfg.DataDir, "anota.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := llm.NewOpenAIClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, logger)
	registry := tools.NewRegistry(logger, st)

	pipeline := agent.NewPipeline(
		logger,
		st,
		session.NewDeduplicator(logger, st),
		session.NewManager(logger, st, cfg.Session.IdleTimeout()),
		snapshot.NewBuilder(logger, st),
		router.NewLLMRouter(logger, client, cfg.Provider.RouterModel, cfg.Provider.RouterFallbackModel),
		worker.NewDispatcher(logger, client, registry, cfg.Provider.WorkerModel),
	)

	return &deps{store: st, pipeline: pipeline}, nil
}

func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		parsed, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		level = parsed
	}
	logger := newLogger(stdout, level)
	logger.Info("starting", "build", buildinfo.String(), "config", cfgPath)

	d, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer d.store.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listen := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	server := api.NewServer(listen, d.pipeline, d.store, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	if cfg.Gateway.Enabled {
		client := gateway.NewClient(logger, cfg.Gateway.EventsURL, cfg.Gateway.SendURL, cfg.Gateway.Token)
		bridge := gateway.NewBridge(gateway.BridgeConfig{
			Events:    client.Events(),
			Sender:    client,
			Runner:    d.pipeline,
			Store:     d.store,
			Logger:    logger,
			RateLimit: cfg.Gateway.RateLimit,
		})
		go client.Start(ctx)
		go bridge.Start(ctx)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runAsk processes a single message through the full pipeline and
// prints the reply. Useful for smoke tests without starting the server.
func runAsk(ctx context.Context, stdout io.Writer, configPath, message string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(io.Discard, slog.LevelError)

	d, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer d.store.Close()

	user, err := d.store.GetOrCreateUserByPhone("local-cli")
	if err != nil {
		return err
	}

	res, err := d.pipeline.HandleInbound(ctx, agent.Inbound{
		UserID:   user.ID,
		ThreadID: "cli",
		Text:     message,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res.Reply)
	return nil
}
