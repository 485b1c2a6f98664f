// Command scoutmcpd is the reference binary for the scout core: it wires
// Config, Inventory, Pool, and Pipeline together and exposes them over an
// MCP stdio server. This is the only package allowed to import
// github.com/mark3labs/mcp-go; the core packages never do, so they stay
// transport-agnostic.
package main

func main() {
	Execute()
}
