// Command emmylua-mcp serves the engine's §6.1 query API as an MCP tool
// server over stdio, for editor/agent integrations that speak MCP instead
// of LSP directly.
package main

import (
	"fmt"
	"os"

	"github.com/oxhq/emmylua-core/engine"
	"github.com/oxhq/emmylua-core/mcpserver"
)

func main() {
	opts := engine.Options{
		ConfigPath:      os.Getenv("EMMYLUA_CONFIG"),
		EnvFile:         os.Getenv("EMMYLUA_ENV_FILE"),
		StoreDSN:        os.Getenv("EMMYLUA_STORE_DSN"),
		EnableLuaconfig: os.Getenv("EMMYLUA_ENABLE_LUACONFIG") != "",
	}

	eng, err := engine.Open(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emmylua-mcp: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	if err := mcpserver.Serve(mcpserver.New(eng)); err != nil {
		fmt.Fprintf(os.Stderr, "emmylua-mcp: %v\n", err)
		os.Exit(1)
	}
}
