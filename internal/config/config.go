// Package config defines the frontdesk runtime configuration. Values come
// from defaults, an optional YAML file and FRONTDESK_* environment variables,
// merged by viper.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Modes.
const (
	ModeDev  = "dev"
	ModeProd = "prod"
)

// Face verification modes.
const (
	FaceAlwaysPass = "always_pass"
	FaceExternal   = "external"
)

// Image store backends.
const (
	ImagesDisk = "disk"
	ImagesS3   = "s3"
)

// DevJWTSecret signs tokens in dev mode when no secret is configured. It is
// rejected in prod mode.
const DevJWTSecret = "frontdesk-dev-secret-do-not-use-in-production"

// MinJWTSecretLen is the shortest secret accepted in prod mode.
const MinJWTSecretLen = 32

const redacted = "********"

// knownDefaultPasswords are refused as the bootstrap password in prod mode.
var knownDefaultPasswords = map[string]bool{
	"admin":     true,
	"password":  true,
	"changeme":  true,
	"super":     true,
	"frontdesk": true,
	"123456":    true,
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full runtime configuration.
type Config struct {
	Mode      string          `mapstructure:"mode" yaml:"mode"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle" yaml:"lifecycle"`
	Face      FaceConfig      `mapstructure:"face" yaml:"face"`
	Capture   CaptureConfig   `mapstructure:"capture" yaml:"capture"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Images    ImagesConfig    `mapstructure:"images" yaml:"images"`
	Badge     BadgeConfig     `mapstructure:"badge" yaml:"badge"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig selects the store backend. An empty DSN with the sqlite
// driver stores frontdesk.db in the data directory.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// AuthConfig controls tokens and the bootstrap superuser.
type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL           time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	BootstrapUsername  string        `mapstructure:"bootstrap_username" yaml:"bootstrap_username"`
	BootstrapPassword  string        `mapstructure:"bootstrap_password" yaml:"bootstrap_password"`
	BootstrapCompanyID int64         `mapstructure:"bootstrap_company_id" yaml:"bootstrap_company_id"`
	LoginRatePerMinute int           `mapstructure:"login_rate_per_minute" yaml:"login_rate_per_minute"`
}

// LifecycleConfig holds visitor lifecycle policies.
type LifecycleConfig struct {
	StrictCheckout      bool   `mapstructure:"strict_checkout" yaml:"strict_checkout"`
	RegistrationBaseURL string `mapstructure:"registration_base_url" yaml:"registration_base_url"`
}

// FaceConfig selects the check-in face gate.
type FaceConfig struct {
	Mode     string        `mapstructure:"mode" yaml:"mode"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Token    string        `mapstructure:"token" yaml:"token"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CaptureConfig configures the desk camera. An empty command disables
// capture.
type CaptureConfig struct {
	Command string        `mapstructure:"command" yaml:"command"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// NotifyConfig configures outbound email and SMS. Channels left empty are
// logged instead of delivered.
type NotifyConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SMTP    SMTPConfig    `mapstructure:"smtp" yaml:"smtp"`
	SMS     SMSConfig     `mapstructure:"sms" yaml:"sms"`
}

// SMTPConfig configures email delivery.
type SMTPConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
}

// SMSConfig configures the SMS webhook.
type SMSConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Token      string `mapstructure:"token" yaml:"token"`
}

// ImagesConfig selects where face images are kept.
type ImagesConfig struct {
	Backend string   `mapstructure:"backend" yaml:"backend"`
	Dir     string   `mapstructure:"dir" yaml:"dir"`
	S3      S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config addresses an S3-compatible bucket.
type S3Config struct {
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Region       string `mapstructure:"region" yaml:"region"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey    string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey    string `mapstructure:"secret_key" yaml:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
}

// BadgeConfig controls PDF output.
type BadgeConfig struct {
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns a Config pre-filled with dev-friendly defaults.
func Default() *Config {
	return &Config{
		Mode: ModeDev,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    12 << 20,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{Driver: "sqlite"},
		Auth: AuthConfig{
			TokenTTL:           30 * time.Minute,
			BootstrapUsername:  "super",
			BootstrapCompanyID: 1,
			LoginRatePerMinute: 10,
		},
		Lifecycle: LifecycleConfig{
			StrictCheckout:      true,
			RegistrationBaseURL: "http://localhost:8080",
		},
		Face: FaceConfig{
			Mode:    FaceAlwaysPass,
			Timeout: 10 * time.Second,
		},
		Capture: CaptureConfig{Timeout: 10 * time.Second},
		Notify:  NotifyConfig{Timeout: 10 * time.Second},
		Images:  ImagesConfig{Backend: ImagesDisk},
		Badge:   BadgeConfig{Compress: true},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// setDefaults registers every key with viper so that environment variables
// are picked up by Unmarshal even when no file sets them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("mode", d.Mode)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)

	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("auth.bootstrap_username", d.Auth.BootstrapUsername)
	v.SetDefault("auth.bootstrap_password", d.Auth.BootstrapPassword)
	v.SetDefault("auth.bootstrap_company_id", d.Auth.BootstrapCompanyID)
	v.SetDefault("auth.login_rate_per_minute", d.Auth.LoginRatePerMinute)

	v.SetDefault("lifecycle.strict_checkout", d.Lifecycle.StrictCheckout)
	v.SetDefault("lifecycle.registration_base_url", d.Lifecycle.RegistrationBaseURL)

	v.SetDefault("face.mode", d.Face.Mode)
	v.SetDefault("face.endpoint", d.Face.Endpoint)
	v.SetDefault("face.token", d.Face.Token)
	v.SetDefault("face.timeout", d.Face.Timeout)

	v.SetDefault("capture.command", d.Capture.Command)
	v.SetDefault("capture.timeout", d.Capture.Timeout)

	v.SetDefault("notify.timeout", d.Notify.Timeout)
	v.SetDefault("notify.smtp.addr", d.Notify.SMTP.Addr)
	v.SetDefault("notify.smtp.username", d.Notify.SMTP.Username)
	v.SetDefault("notify.smtp.password", d.Notify.SMTP.Password)
	v.SetDefault("notify.smtp.from", d.Notify.SMTP.From)
	v.SetDefault("notify.sms.webhook_url", d.Notify.SMS.WebhookURL)
	v.SetDefault("notify.sms.token", d.Notify.SMS.Token)

	v.SetDefault("images.backend", d.Images.Backend)
	v.SetDefault("images.dir", d.Images.Dir)
	v.SetDefault("images.s3.bucket", d.Images.S3.Bucket)
	v.SetDefault("images.s3.region", d.Images.S3.Region)
	v.SetDefault("images.s3.endpoint", d.Images.S3.Endpoint)
	v.SetDefault("images.s3.access_key", d.Images.S3.AccessKey)
	v.SetDefault("images.s3.secret_key", d.Images.S3.SecretKey)
	v.SetDefault("images.s3.use_path_style", d.Images.S3.UsePathStyle)

	v.SetDefault("badge.compress", d.Badge.Compress)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// BindEnv makes v read FRONTDESK_* variables, with nested keys joined by
// underscores (auth.jwt_secret -> FRONTDESK_AUTH_JWT_SECRET).
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("FRONTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the effective configuration held by v. The caller decides
// which files v has read.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v, Default())
	BindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	return cfg, nil
}

// Validate checks cross-field rules. In prod mode it fails closed on weak or
// missing secrets and on the pass-through face gate.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Mode {
	case ModeDev, ModeProd:
	default:
		add("mode must be %q or %q, got %q", ModeDev, ModeProd, c.Mode)
	}

	switch c.Database.Driver {
	case "", "sqlite", "postgres", "pgx", "mysql":
	default:
		add("database.driver %q is not supported", c.Database.Driver)
	}
	if (c.Database.Driver == "postgres" || c.Database.Driver == "pgx" || c.Database.Driver == "mysql") && c.Database.DSN == "" {
		add("database.dsn is required for driver %q", c.Database.Driver)
	}

	if c.Auth.TokenTTL <= 0 {
		add("auth.token_ttl must be positive")
	}
	if c.Auth.BootstrapUsername == "" {
		add("auth.bootstrap_username is required")
	}
	if c.Auth.BootstrapCompanyID <= 0 {
		add("auth.bootstrap_company_id must be positive")
	}

	switch c.Face.Mode {
	case FaceAlwaysPass:
	case FaceExternal:
		if c.Face.Endpoint == "" {
			add("face.endpoint is required when face.mode is %q", FaceExternal)
		}
	default:
		add("face.mode must be %q or %q, got %q", FaceAlwaysPass, FaceExternal, c.Face.Mode)
	}

	switch c.Images.Backend {
	case ImagesDisk:
	case ImagesS3:
		if c.Images.S3.Bucket == "" {
			add("images.s3.bucket is required when images.backend is %q", ImagesS3)
		}
	default:
		add("images.backend must be %q or %q, got %q", ImagesDisk, ImagesS3, c.Images.Backend)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	if c.Mode == ModeProd {
		switch {
		case c.Auth.JWTSecret == "":
			add("auth.jwt_secret is required in prod mode")
		case c.Auth.JWTSecret == DevJWTSecret:
			add("auth.jwt_secret must not be the dev default in prod mode")
		case len(c.Auth.JWTSecret) < MinJWTSecretLen:
			add("auth.jwt_secret must be at least %d bytes in prod mode", MinJWTSecretLen)
		}
		switch {
		case c.Auth.BootstrapPassword == "":
			add("auth.bootstrap_password is required in prod mode")
		case knownDefaultPasswords[strings.ToLower(c.Auth.BootstrapPassword)]:
			add("auth.bootstrap_password is a well-known default")
		}
		if c.Face.Mode == FaceAlwaysPass {
			add("face.mode %q disables the check-in face gate and is refused in prod mode", FaceAlwaysPass)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// DevFallbacks fills the secrets dev mode may run without. It returns the
// generated bootstrap password, or "" when one was configured. It is a
// no-op in prod mode.
func (c *Config) DevFallbacks() (usedDevSecret bool, generatedPassword string, err error) {
	if c.Mode != ModeDev {
		return false, "", nil
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = DevJWTSecret
		usedDevSecret = true
	}
	if c.Auth.BootstrapPassword == "" {
		buf := make([]byte, 12)
		if _, err := rand.Read(buf); err != nil {
			return usedDevSecret, "", fmt.Errorf("generate bootstrap password: %w", err)
		}
		c.Auth.BootstrapPassword = hex.EncodeToString(buf)
		generatedPassword = c.Auth.BootstrapPassword
	}
	return usedDevSecret, generatedPassword, nil
}

// Redacted returns a copy with every secret masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&out.Database.DSN)
	mask(&out.Auth.JWTSecret)
	mask(&out.Auth.BootstrapPassword)
	mask(&out.Face.Token)
	mask(&out.Notify.SMTP.Password)
	mask(&out.Notify.SMS.Token)
	mask(&out.Images.S3.AccessKey)
	mask(&out.Images.S3.SecretKey)
	return &out
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
