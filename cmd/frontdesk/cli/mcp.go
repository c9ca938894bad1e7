package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	fmcp "github.com/faucetdb/frontdesk/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
		companyID int64
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes one company's front
desk as tools for AI agents: dashboard counts, visitor lookup and reports,
pre-registration and check-out. Check-in is not exposed because it requires a
face at the desk.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with desktop MCP clients.

In HTTP mode, the server listens on the specified port using the streamable
HTTP transport.`,
		Example: `  frontdesk mcp --company 1                          # stdio mode
  frontdesk mcp --company 1 --transport http --port 3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, transport, port, companyID)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")
	cmd.Flags().Int64Var(&companyID, "company", 1, "Company whose front desk the agent operates")

	return cmd
}

func runMCP(cmd *cobra.Command, transport string, port int, companyID int64) error {
	if companyID <= 0 {
		return fmt.Errorf("--company must be positive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol in stdio mode, so logs go to stderr.
	logger := newLogger(cfg.Logging, os.Stderr)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	visitors, err := newVisitorService(cmd.Context(), cfg, st, logger)
	if err != nil {
		return err
	}

	mcpSrv := fmcp.NewMCPServer(visitors, companyID, versionString(), logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		addr := fmt.Sprintf(":%d", port)
		logger.Info("starting MCP HTTP server", "addr", addr, "company_id", companyID)
		return mcpSrv.ServeHTTP(addr)
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
