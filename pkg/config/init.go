package config

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// configTemplate is the annotated YAML written by `patchbay init`. It is
// kept as a template (rather than yaml.Marshal of GetDefaultConfig) so
// the generated file carries comments a new operator can read.
const configTemplate = `# Patchbay Configuration File
#
# Environment variables override file values using the PATCHBAY_ prefix:
#   PATCHBAY_LOGGING_LEVEL=DEBUG
#   PATCHBAY_API_PORT=9000

# Logging configuration
logging:
  # Minimum log level: DEBUG, INFO, WARN, ERROR
  level: INFO
  # Output format: text, json
  format: text
  # Destination: stdout, stderr, or a file path
  output: stdout

# Maximum time to wait for in-flight requests during shutdown
shutdown_timeout: 30s

# Database holding the block graph, upload ledger, and image cache index
database:
  # Backend: sqlite (single node) or postgres
  type: {{ .DatabaseType }}
{{- if .UsePostgres }}
  postgres:
    host: {{ .PostgresHost }}
    port: {{ .PostgresPort }}
    user: {{ .PostgresUser }}
    password: "{{ .PostgresPassword }}"
    database: {{ .PostgresDatabase }}
    ssl_mode: disable
{{- else }}
  sqlite:
    path: {{ .DatabasePath }}
  # postgres:
  #   host: localhost
  #   port: 5432
  #   user: patchbay
  #   password: ""
  #   database: patchbay
  #   ssl_mode: disable
{{- end }}

# On-disk image tree: originals at the root, derived outputs under
# cached_images/, thumbnails under thumbnails/
image_store:
  path: {{ .ImageStorePath }}

# Pipeline evaluation
pipeline:
  # External thumbnailer binary, invoked as:
  #   thumbnailer <source> <target> <width> <max-height>
  thumbnailer: {{ .Thumbnailer }}

# Prometheus metrics endpoint (opt-in)
metrics:
  enabled: false
  port: 9090

# HTTP API server
api:
  enabled: true
  port: {{ .APIPort }}
  read_timeout: 30s
  write_timeout: 120s
  idle_timeout: 60s
  # Upload cap per request; accepts 256Mi, 1Gi, 100MB, or raw bytes
  max_upload_size: 256Mi
`

// InitOptions are the operator-tunable values substituted into the
// generated config. The interactive init prompts for them; the
// non-interactive path uses DefaultInitOptions.
type InitOptions struct {
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     int
	PostgresDatabase string
	PostgresUser     string
	PostgresPassword string
	ImageStorePath   string
	Thumbnailer      string
	APIPort          int
}

// DefaultInitOptions returns the options the plain `patchbay init` writes:
// sqlite under the data dir, image store beside it, vipsthumbnail, port
// 8080.
func DefaultInitOptions() InitOptions {
	return InitOptions{
		DatabaseType:   "sqlite",
		DatabasePath:   filepath.Join(getDataDir(), "patchbay.db"),
		ImageStorePath: filepath.Join(getDataDir(), "image_store"),
		Thumbnailer:    "vipsthumbnail",
		APIPort:        8080,
	}
}

// templateData is InitOptions plus derived template switches.
type templateData struct {
	InitOptions
	UsePostgres bool
}

// InitConfig creates a config file at the default location.
// Returns the path where the config was created.
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()

	if err := InitConfigToPath(configPath, force); err != nil {
		return "", err
	}

	return configPath, nil
}

// InitConfigToPath creates a config file at the specified path using the
// default options.
func InitConfigToPath(configPath string, force bool) error {
	return InitConfigWithOptions(configPath, force, DefaultInitOptions())
}

// InitConfigWithOptions creates a config file at the specified path,
// substituting the given options into the annotated template. Zero-value
// fields fall back to their defaults so callers only set what they
// collected.
func InitConfigWithOptions(configPath string, force bool, opts InitOptions) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse config template: %w", err)
	}

	f, err := os.OpenFile(configPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	defaults := DefaultInitOptions()
	if opts.DatabaseType == "" {
		opts.DatabaseType = defaults.DatabaseType
	}
	if opts.DatabasePath == "" {
		opts.DatabasePath = defaults.DatabasePath
	}
	if opts.PostgresPort == 0 {
		opts.PostgresPort = 5432
	}
	if opts.ImageStorePath == "" {
		opts.ImageStorePath = defaults.ImageStorePath
	}
	if opts.Thumbnailer == "" {
		opts.Thumbnailer = defaults.Thumbnailer
	}
	if opts.APIPort == 0 {
		opts.APIPort = defaults.APIPort
	}

	data := templateData{
		InitOptions: opts,
		UsePostgres: opts.DatabaseType == "postgres",
	}
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
