package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML configuration file on top of the defaults.
// Environment variables referenced as ${VAR_NAME} in the file are expanded
// before parsing; FRONTDESK_* variables still override file values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader([]byte(os.ExpandEnv(string(data))))); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return Load(v)
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Template is the commented starting point written by "frontdesk config init".
const Template = `# frontdesk configuration
# Every key can be overridden with FRONTDESK_<SECTION>_<KEY>, e.g.
# FRONTDESK_AUTH_JWT_SECRET.

mode: dev   # dev or prod; prod refuses weak secrets and always_pass face mode

server:
  host: 0.0.0.0
  port: 8080
  read_timeout: 15s
  write_timeout: 30s
  shutdown_timeout: 30s
  cors_origins:
    - "*"

database:
  driver: sqlite     # sqlite, postgres or mysql
  dsn: ""            # empty keeps frontdesk.db in the data directory

auth:
  jwt_secret: ""     # Set via FRONTDESK_AUTH_JWT_SECRET; at least 32 bytes in prod
  token_ttl: 30m
  bootstrap_username: super
  bootstrap_password: ""   # Set via FRONTDESK_AUTH_BOOTSTRAP_PASSWORD
  bootstrap_company_id: 1
  login_rate_per_minute: 10

lifecycle:
  strict_checkout: true
  registration_base_url: http://localhost:8080

face:
  mode: always_pass  # always_pass or external
  endpoint: ""
  timeout: 10s

capture:
  command: ""        # e.g. "fswebcam --no-banner -r 640x480 -"
  timeout: 10s

notify:
  timeout: 10s
  smtp:
    addr: ""         # host:port; empty logs emails instead of sending
    username: ""
    password: ""
    from: frontdesk@localhost
  sms:
    webhook_url: ""  # empty logs SMS instead of sending
    token: ""

images:
  backend: disk      # disk or s3
  dir: ""            # empty uses <data-dir>/images
  s3:
    bucket: ""
    region: us-east-1
    endpoint: ""
    use_path_style: false

badge:
  compress: true

logging:
  level: info        # debug, info, warn, error
  format: text       # text or json
`
