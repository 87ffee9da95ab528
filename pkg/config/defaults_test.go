package config

import (
	"testing"
	"time"

	"github.com/patchbay-dev/patchbay/pkg/store"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_API(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.API.ReadTimeout != 30*time.Second {
		t.Errorf("Expected default read timeout 30s, got %v", cfg.API.ReadTimeout)
	}
	if cfg.API.WriteTimeout != 120*time.Second {
		t.Errorf("Expected default write timeout 120s, got %v", cfg.API.WriteTimeout)
	}
	if cfg.API.IdleTimeout != 60*time.Second {
		t.Errorf("Expected default idle timeout 60s, got %v", cfg.API.IdleTimeout)
	}
	if cfg.API.MaxUploadSize.Uint64() != 256<<20 {
		t.Errorf("Expected default upload cap 256MB, got %d", cfg.API.MaxUploadSize.Uint64())
	}
}

func TestApplyDefaults_Database(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("Expected default database type sqlite, got %q", cfg.Database.Type)
	}
	if cfg.Database.SQLite.Path == "" {
		t.Error("Expected default SQLite path to be set")
	}
}

func TestApplyDefaults_Pipeline(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Pipeline.Thumbnailer != "vipsthumbnail" {
		t.Errorf("Expected default thumbnailer 'vipsthumbnail', got %q", cfg.Pipeline.Thumbnailer)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/patchbay.log",
		},
		ShutdownTimeout: 60 * time.Second,
		ImageStore: ImageStoreConfig{
			Path: "/srv/patchbay/images",
		},
		Pipeline: PipelineConfig{
			Thumbnailer: "/usr/local/bin/vipsthumbnail",
		},
	}

	ApplyDefaults(cfg)

	// Verify explicit values were preserved
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format 'json' to be preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/patchbay.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.ImageStore.Path != "/srv/patchbay/images" {
		t.Errorf("Expected explicit image store path to be preserved, got %q", cfg.ImageStore.Path)
	}
	if cfg.Pipeline.Thumbnailer != "/usr/local/bin/vipsthumbnail" {
		t.Errorf("Expected explicit thumbnailer to be preserved, got %q", cfg.Pipeline.Thumbnailer)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	// The default config should pass validation
	err := Validate(cfg)
	if err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	// Check all required sections are present
	if cfg.Logging.Level == "" {
		t.Error("Default config missing logging level")
	}
	if cfg.API.Port == 0 {
		t.Error("Default config missing API port")
	}
	if cfg.ImageStore.Path == "" {
		t.Error("Default config missing image store path")
	}
	if cfg.Pipeline.Thumbnailer == "" {
		t.Error("Default config missing thumbnailer")
	}
}
