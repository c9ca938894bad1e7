package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/faucetdb/frontdesk/internal/badge"
	"github.com/faucetdb/frontdesk/internal/config"
	"github.com/faucetdb/frontdesk/internal/face"
	"github.com/faucetdb/frontdesk/internal/imagestore"
	"github.com/faucetdb/frontdesk/internal/notify"
	"github.com/faucetdb/frontdesk/internal/service"
	"github.com/faucetdb/frontdesk/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// FRONTDESK_DATA_DIR env var, or ~/.frontdesk as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("FRONTDESK_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".frontdesk")
}

// loadConfig returns the effective configuration. A file located by
// initConfig is re-read through config.LoadFile so ${VAR} references in it
// are expanded.
func loadConfig() (*config.Config, error) {
	if path := viper.ConfigFileUsed(); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(viper.New())
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore connects to the configured database. SQLite without a DSN lives
// in the data directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	dsn := cfg.Database.DSN
	if (cfg.Database.Driver == "" || cfg.Database.Driver == "sqlite") && dsn == "" {
		dsn = resolveDataDir()
	}
	st, err := store.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return st, nil
}

func newImageStore(ctx context.Context, cfg config.ImagesConfig) (imagestore.Store, error) {
	switch cfg.Backend {
	case config.ImagesS3:
		return imagestore.NewS3(ctx, imagestore.S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	default:
		dir := cfg.Dir
		if dir == "" {
			dir = filepath.Join(resolveDataDir(), "images")
		}
		return imagestore.NewDisk(dir)
	}
}

func newVerifier(cfg config.FaceConfig, images imagestore.Store, logger *slog.Logger) face.Verifier {
	if cfg.Mode == config.FaceExternal {
		return face.NewExternalService(cfg.Endpoint, cfg.Token, images, cfg.Timeout)
	}
	logger.Warn("face verification disabled: every check-in passes the face gate", "mode", cfg.Mode)
	return face.AlwaysPass{}
}

// newNotifier routes each channel to its configured sender. Channels without
// one are logged instead of delivered.
func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) notify.Gateway {
	logGateway := notify.NewLogGateway(logger)
	if cfg.SMTP.Addr == "" && cfg.SMS.WebhookURL == "" {
		logger.Info("no notification channels configured, notifications will be logged")
		return logGateway
	}

	d := &notify.Dispatcher{Email: logGateway, SMS: logGateway}
	if cfg.SMTP.Addr != "" {
		d.Email = notify.NewSMTPMailer(notify.SMTPConfig{
			Addr:     cfg.SMTP.Addr,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  cfg.Timeout,
		})
	}
	if cfg.SMS.WebhookURL != "" {
		d.SMS = notify.NewWebhookSMS(cfg.SMS.WebhookURL, cfg.SMS.Token, cfg.Timeout)
	}
	return d
}

// newVisitorService assembles the visitor lifecycle with every collaborator
// the configuration enables.
func newVisitorService(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*service.VisitorService, error) {
	images, err := newImageStore(ctx, cfg.Images)
	if err != nil {
		return nil, fmt.Errorf("init image store: %w", err)
	}

	opts := []service.VisitorOption{
		service.WithImages(images),
		service.WithBadges(badge.NewRenderer(images, logger, badge.WithCompression(cfg.Badge.Compress))),
	}
	if cfg.Capture.Command != "" {
		capturer, err := face.NewCommandCapturer(cfg.Capture.Command, cfg.Capture.Timeout)
		if err != nil {
			return nil, fmt.Errorf("init capture: %w", err)
		}
		opts = append(opts, service.WithCapturer(capturer))
	}

	return service.NewVisitorService(
		st,
		newVerifier(cfg.Face, images, logger),
		newNotifier(cfg.Notify, logger),
		logger,
		service.VisitorConfig{
			StrictCheckout:      cfg.Lifecycle.StrictCheckout,
			RegistrationBaseURL: cfg.Lifecycle.RegistrationBaseURL,
			NotifyTimeout:       cfg.Notify.Timeout,
		},
		opts...,
	), nil
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
