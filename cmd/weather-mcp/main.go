// ABOUTME: Entry point for the weather-mcp server and its client subcommands.
// ABOUTME: Runs the stdio or HTTP transport, or probes a running server.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/skycast/weather-mcp/internal/auth"
	"github.com/skycast/weather-mcp/internal/config"
	"github.com/skycast/weather-mcp/internal/httpserver"
	"github.com/skycast/weather-mcp/internal/mcp"
	"github.com/skycast/weather-mcp/internal/tools"
	"github.com/skycast/weather-mcp/internal/weather"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                    _   _
__      _____  __ _| |_| |__   ___ _ __      _ __ ___   ___ _ __
\ \ /\ / / _ \/ _' | __| '_ \ / _ \ '__|____| '_ ' _ \ / __| '_ \
 \ V  V /  __/ (_| | |_| | | |  __/ | |_____| | | | | | (__| |_) |
  \_/\_/ \___|\__,_|\__|_| |_|\___|_|       |_| |_| |_|\___| .__/
                                                           |_|
`

// getConfigPath returns the config file path, empty meaning env-only config.
func getConfigPath() string {
	return os.Getenv("WEATHER_MCP_CONFIG")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: weather-mcp <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  stdio              Run the MCP server on stdin/stdout")
		fmt.Println("  serve              Run the MCP server over HTTP")
		fmt.Println("  health             Check a running server's health endpoint")
		fmt.Println("  tools              List a running server's tools")
		fmt.Println("  call CITY [UNIT]   Call get_weather on a running server")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "stdio":
		err = runStdio(ctx)
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "tools":
		err = runTools(ctx)
	case "call":
		err = runCall(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildRegistry registers every tool the server exposes.
func buildRegistry() (*tools.Registry, error) {
	registry := tools.NewRegistry()
	gen := weather.NewGenerator()
	if err := registry.Register(weather.Descriptor(), weather.Handler(gen)); err != nil {
		return nil, fmt.Errorf("registering weather tool: %w", err)
	}
	return registry, nil
}

// runStdio serves MCP over stdin/stdout. All logging goes to stderr; stdout
// carries only protocol frames.
func runStdio(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)

	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	engine := mcp.NewEngine(registry, logger)
	srv, err := mcp.NewStdioServer(mcp.StdioConfig{
		Engine:        engine,
		In:            os.Stdin,
		Out:           os.Stdout,
		Logger:        logger,
		ShutdownGrace: cfg.Stdio.ShutdownGrace,
	})
	if err != nil {
		return fmt.Errorf("creating stdio server: %w", err)
	}

	logger.Info("weather MCP server listening on stdio", "version", version)
	return srv.Serve(ctx)
}

// runServe serves MCP over HTTP with the auth gate in front when configured.
func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("HTTP: %s\n", cfg.Server.HTTPAddr)

	registry, err := buildRegistry()
	if err != nil {
		return err
	}
	engine := mcp.NewEngine(registry, logger)

	var validator *auth.Validator
	if cfg.Auth.Enabled() {
		validator, err = auth.NewEntraValidator(cfg.Auth.TenantID, cfg.Auth.ClientID, logger)
		if err != nil {
			return fmt.Errorf("creating token validator: %w", err)
		}
		green.Print("    ▶ ")
		fmt.Printf("Auth: Entra ID tenant %s\n", cfg.Auth.TenantID)
	} else {
		yellow := color.New(color.FgYellow, color.Bold)
		yellow.Print("    ▶ ")
		yellow.Println("Auth: DISABLED")
		logger.Warn("AUTHENTICATION DISABLED: /tools and /mcp are unprotected; this mode is for local development only")
	}
	fmt.Println()

	srv, err := httpserver.New(httpserver.Config{
		Addr:         cfg.Server.HTTPAddr,
		Registry:     registry,
		Engine:       engine,
		Validator:    validator,
		RequiredRole: cfg.Auth.RequiredRole,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating HTTP server: %w", err)
	}

	logger.Info("starting weather-mcp",
		"http_addr", cfg.Server.HTTPAddr,
		"auth_enabled", cfg.Auth.Enabled(),
	)
	return srv.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig, out *os.File) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
