package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/faucetdb/frontdesk/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check if the frontdesk server is running",
		Long:  "Check the server process and its readiness probe, which includes the database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.OutOrStdout())
		},
	}
}

func runStatus(w io.Writer) error {
	pid, err := readPID()
	if err != nil {
		fmt.Fprintln(w, "Server is not running (no PID file found).")
		return nil
	}

	if !isProcessRunning(pid) {
		removePID()
		fmt.Fprintln(w, "Server is not running (stale PID file removed).")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	readyAddr := readyURL(cfg.Server)
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(readyAddr)
	if err != nil {
		fmt.Fprintf(w, "Server process is running (PID %d) but not responding to HTTP.\n", pid)
		return nil
	}
	defer resp.Body.Close()

	fmt.Fprintf(w, "Server is running (PID %d)\n", pid)
	describeReadiness(w, readyAddr, resp)
	return nil
}

// readyURL is the loopback address of the readiness endpoint for a server
// bound to cfg.
func readyURL(cfg config.ServerConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d/readyz", host, cfg.Port)
}

// describeReadiness prints the /readyz result. A body that is not the
// expected JSON is reported with the raw HTTP status.
func describeReadiness(w io.Writer, addr string, resp *http.Response) {
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(w, "  Ready:   %s (%s, unexpected response body: %v)\n", addr, resp.Status, err)
		return
	}

	fmt.Fprintf(w, "  Ready:   %s (%d %s)\n", addr, resp.StatusCode, body.Status)
	names := make([]string, 0, len(body.Checks))
	for name := range body.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name+":", body.Checks[name])
	}
}
