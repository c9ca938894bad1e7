package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// stopGrace is added to the server's shutdown timeout before giving up.
const stopGrace = 2 * time.Second

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running frontdesk server",
		Long: `Signal a frontdesk server started with 'frontdesk serve' to drain and exit.
The command waits for server.shutdown_timeout so that check-ins already in
flight can finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.OutOrStdout())
		},
	}
}

func runStop(w io.Writer) error {
	pid, err := readPID()
	if err != nil {
		return fmt.Errorf("no running server found (missing PID file at %s)", pidFilePath())
	}

	if !isProcessRunning(pid) {
		removePID()
		return fmt.Errorf("server (PID %d) is not running (stale PID file removed)", pid)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	wait := cfg.Server.ShutdownTimeout + stopGrace

	fmt.Fprintf(w, "Stopping frontdesk server (PID %d, data dir %s)...\n", pid, resolveDataDir())

	if err := stopProcess(pid); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if !waitForExit(pid, wait, 100*time.Millisecond, isProcessRunning) {
		return fmt.Errorf("server (PID %d) did not stop within %s, it may still be draining connections", pid, wait)
	}
	removePID()
	fmt.Fprintln(w, "Server stopped.")
	return nil
}

// waitForExit polls running until it reports false or timeout elapses.
func waitForExit(pid int, timeout, interval time.Duration, running func(int) bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !running(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
