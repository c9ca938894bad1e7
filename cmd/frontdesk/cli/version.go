package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/faucetdb/frontdesk/internal/config"
)

func newVersionCmd(version, commit, date string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and the configured backends",
		Long: `Print build information followed by the deployment mode, database driver,
face gate and image backend the current configuration selects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo(version, commit, date)
			// An unreadable config still prints the build fields.
			if cfg, err := loadConfig(); err == nil {
				addBackends(info, cfg)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "frontdesk %s\n", versionString())
			for _, key := range []string{"commit", "built", "go_version", "os", "arch", "mode", "database", "face", "images", "data_dir"} {
				if v, ok := info[key]; ok {
					fmt.Fprintf(out, "  %-11s %s\n", key+":", v)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}

func versionInfo(version, commit, date string) map[string]string {
	return map[string]string{
		"version":    version,
		"commit":     commit,
		"built":      date,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}

// addBackends records which implementations a server started with cfg
// would use.
func addBackends(info map[string]string, cfg *config.Config) {
	info["mode"] = cfg.Mode
	info["database"] = cfg.Database.Driver
	info["face"] = cfg.Face.Mode
	info["images"] = cfg.Images.Backend
	info["data_dir"] = resolveDataDir()
}
