package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/frontdesk/internal/config"
	"github.com/faucetdb/frontdesk/internal/server"
	"github.com/faucetdb/frontdesk/internal/service"
)

const banner = `
  __                 _      _           _
 / _|_ __ ___  _ __ | |_ __| | ___  ___| | __
| |_| '__/ _ \| '_ \| __/ _' |/ _ \/ __| |/ /
|  _| | | (_) | | | | || (_| |  __/\__ \   <
|_| |_|  \___/|_| |_|\__\__,_|\___||___/_|\_\
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the frontdesk API server",
		Long: `Start the HTTP server that exposes the visitor API.

On first start the bootstrap superuser is created from auth.bootstrap_username
and auth.bootstrap_password. In dev mode a missing password is generated and
printed once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if dev {
				cfg.Mode = config.ModeDev
				cfg.Logging.Level = "debug"
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Force dev mode with debug logging")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	fmt.Print(banner)
	fmt.Println()

	if err := cfg.Validate(); err != nil {
		return err
	}
	usedDevSecret, generatedPassword, err := cfg.DevFallbacks()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging, os.Stderr)
	if usedDevSecret {
		logger.Warn("auth.jwt_secret not set, signing tokens with the built-in dev secret")
	}

	// 1. Store
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("store initialized", "driver", st.Driver())

	// 2. Auth and bootstrap superuser
	authSvc := service.NewAuthService(st, cfg.Auth.JWTSecret, service.WithTokenTTL(cfg.Auth.TokenTTL))
	created, err := authSvc.EnsureSuperuser(ctx, cfg.Auth.BootstrapUsername, cfg.Auth.BootstrapPassword, cfg.Auth.BootstrapCompanyID)
	if err != nil {
		return fmt.Errorf("bootstrap superuser: %w", err)
	}
	if created {
		logger.Info("bootstrap superuser created", "username", cfg.Auth.BootstrapUsername, "company_id", cfg.Auth.BootstrapCompanyID)
		if generatedPassword != "" {
			fmt.Printf("→ Superuser %q created with password: %s\n", cfg.Auth.BootstrapUsername, generatedPassword)
			fmt.Println("  Store it now, it will not be shown again.")
		}
	}

	// 3. Visitor lifecycle
	visitors, err := newVisitorService(ctx, cfg, st, logger)
	if err != nil {
		return err
	}

	// 4. HTTP server
	srvCfg := server.Config{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        cfg.Server.IdleTimeout,
		ShutdownTimeout:    cfg.Server.ShutdownTimeout,
		CORSOrigins:        cfg.Server.CORSOrigins,
		MaxBodySize:        cfg.Server.MaxBodyBytes,
		LoginRatePerMinute: cfg.Auth.LoginRatePerMinute,
		BaseURL:            cfg.Lifecycle.RegistrationBaseURL,
		Version:            versionString(),
	}
	srv := server.New(srvCfg, st, authSvc, visitors, logger)

	fmt.Printf("→ frontdesk %s (%s mode)\n", versionString(), cfg.Mode)
	fmt.Printf("→ Listening on http://%s\n", cfg.Addr())
	fmt.Printf("→ OpenAPI:    http://%s/openapi.json\n", cfg.Addr())
	fmt.Printf("→ Health:     http://%s/healthz\n", cfg.Addr())
	fmt.Println()

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "path", pidFilePath(), "error", err)
	}
	defer removePID()

	return srv.ListenAndServe()
}
