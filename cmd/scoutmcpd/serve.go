package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/jmagar/scoutmcp/internal/auth"
	"github.com/jmagar/scoutmcp/internal/config"
	"github.com/jmagar/scoutmcp/internal/inventory"
	"github.com/jmagar/scoutmcp/internal/logging"
	"github.com/jmagar/scoutmcp/internal/pipeline"
	"github.com/jmagar/scoutmcp/internal/ratelimit"
	"github.com/jmagar/scoutmcp/internal/scout"
	"github.com/jmagar/scoutmcp/internal/scouterr"
	"github.com/jmagar/scoutmcp/internal/sshpool"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP stdio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	logger := logging.Global()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	inv, err := inventory.NewFileAdapter(cfg.InventoryPath)
	if err != nil {
		return fmt.Errorf("loading inventory %q: %w", cfg.InventoryPath, err)
	}
	if err := inv.Watch(); err != nil {
		logger.Warn().Err(err).Msg("inventory hot-reload disabled")
	}
	defer inv.Close()

	pool, err := sshpool.New(sshpool.Config{
		MaxPoolSize:    cfg.MaxPoolSize,
		IdleTimeout:    cfg.IdleTimeout,
		MaxLifetime:    cfg.MaxLifetime,
		ConnectTimeout: cfg.ConnectTimeout,
		KnownHostsPath: cfg.KnownHostsPath,
	})
	if err != nil {
		return fmt.Errorf("starting connection pool: %w", err)
	}
	defer pool.Close()

	dispatcher := scout.New(inv, pool, cfg.MaxFileBytes, cfg.MaxOutputBytes, int(cfg.CommandTimeout.Seconds()), 0)

	limiter := ratelimit.New(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	authenticator := auth.New(cfg.APIKeys)

	pl := pipeline.New(limiter, authenticator, cfg.HealthMethodName, dispatchHandler(dispatcher))

	mcpServer := server.NewMCPServer(
		"scoutmcpd",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	registerScoutTool(mcpServer, pl)
	registerScoutResources(mcpServer, pl)

	logger.Info().Str("inventory", cfg.InventoryPath).Int("max_pool_size", cfg.MaxPoolSize).Msg("scoutmcpd starting (stdio)")

	if err := server.ServeStdio(mcpServer); err != nil {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

// dispatchHandler adapts the scout.Dispatcher's two Go-typed entry points to
// the Pipeline's uniform Handler signature, routing on method name: "scout"
// is the tool-style variant, "read_resource" the resource-addressed one.
func dispatchHandler(d *scout.Dispatcher) pipeline.Handler {
	return func(ctx context.Context, method string, params map[string]any, rc pipeline.RequestContext) (string, error) {
		switch method {
		case "scout":
			target, _ := params["target"].(string)
			query, _ := params["query"].(string)
			hasQuery, _ := params["has_query"].(bool)
			tree, _ := params["tree"].(bool)
			maxBytes, _ := params["max_bytes"].(int64)
			return d.Scout(ctx, scout.Params{
				Target:   target,
				Query:    query,
				HasQuery: hasQuery,
				Tree:     tree,
				MaxBytes: maxBytes,
			})
		case "read_resource":
			uri, _ := params["uri"].(string)
			return d.ReadResource(ctx, uri, scout.Params{})
		default:
			return "", scouterr.NewValidationError("method", "unknown method "+method)
		}
	}
}
