package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jmagar/scoutmcp/internal/pipeline"
	"github.com/jmagar/scoutmcp/internal/scout"
)

// resourceSchemes lists every resource-addressed URI scheme the dispatcher
// answers.
var resourceSchemes = []struct {
	scheme string
	name   string
	desc   string
}{
	{"hosts", "known-hosts", "reachability-annotated list of every known host"},
	{"file", "remote-file", "a file or directory on a host, e.g. file://web1/etc/hostname"},
	{"docker", "docker-state", "docker ps, or docker logs for one container"},
	{"compose", "compose-logs", "docker compose logs for one project"},
	{"zfs", "zfs-state", "zpool list, zfs list, or zfs snapshot list"},
	{"syslog", "system-log", "tail of the host's system log"},
}

// registerScoutTool exposes the dispatcher's tool-style entry point as the
// single "scout" MCP tool.
func registerScoutTool(s *server.MCPServer, p *pipeline.Pipeline) {
	tool := mcp.NewTool("scout",
		mcp.WithDescription("Inspect files, list directories, and run an allowlisted set of shell commands across the known fleet of hosts. target is either \"hosts\" (list known hosts) or \"<host>:<path>\"."),
		mcp.WithString("target", mcp.Required(), mcp.Description(`"hosts" or "<host>:<path>"`)),
		mcp.WithString("query", mcp.Description("an allowlisted shell command to run instead of inspecting target directly")),
		mcp.WithBoolean("tree", mcp.Description("when target is a directory, render a depth-limited tree instead of a flat listing")),
		mcp.WithNumber("max_bytes", mcp.Description("override the default max-file-bytes cap for this request")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := req.RequireString("target")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		query := req.GetString("query", "")
		params := map[string]any{
			"target":    target,
			"query":     query,
			"has_query": query != "",
			"tree":      req.GetBool("tree", false),
			"max_bytes": int64(req.GetFloat("max_bytes", 0)),
		}

		rc := pipeline.RequestContext{ClientID: clientIDFromContext(ctx)}
		text, err := p.Handle(ctx, "scout", params, rc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s (retry_after=%.1fs)", err.Error(), pipeline.RetryAfterSeconds(err))), nil
		}
		return mcp.NewToolResultText(text), nil
	})
}

// registerScoutResources exposes every resource-addressed scheme as an MCP
// resource template, since host and sub-path are caller-supplied rather than
// fixed at registration time.
func registerScoutResources(s *server.MCPServer, p *pipeline.Pipeline) {
	for _, rs := range resourceSchemes {
		tmpl := mcp.NewResourceTemplate(
			rs.scheme+"://{host}/{path*}",
			rs.name,
			mcp.WithTemplateDescription(rs.desc),
		)
		s.AddResourceTemplate(tmpl, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			uri := req.Params.URI
			rc := pipeline.RequestContext{ClientID: clientIDFromContext(ctx)}
			params := map[string]any{"uri": uri}
			text, err := p.Handle(ctx, "read_resource", params, rc)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: uri, MIMEType: "text/plain", Text: text},
			}, nil
		})
	}
}

// clientIDFromContext has no identity to extract over stdio transport: every
// caller on a stdio pipe is the same local operator process. HTTP transports
// would populate this from a header; scoutmcpd only ships stdio.
func clientIDFromContext(ctx context.Context) string {
	return "stdio"
}
