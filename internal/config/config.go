// Package config loads motorqc configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the complete motorqc configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Export    ExportConfig    `koanf:"export"`
	Relay     RelayConfig     `koanf:"relay"`
	Audio     AudioConfig     `koanf:"audio"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects where records are persisted.
type StoreConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
	// Watch reloads the store when the file backend changes on disk.
	Watch bool `koanf:"watch"`
}

// ExportConfig configures export targets.
type ExportConfig struct {
	BaseURL  string   `koanf:"base_url"`
	Endpoint string   `koanf:"endpoint"`
	Timeout  Duration `koanf:"timeout"`
	// Dir receives CSV and Excel files.
	Dir string `koanf:"dir"`
}

// RelayConfig configures the upload relay mounted at /api/upload.
type RelayConfig struct {
	Enabled bool `koanf:"enabled"`
	// Backend is "dir", "nats" or "forward".
	Backend       string   `koanf:"backend"`
	Dir           string   `koanf:"dir"`
	NATSURL       string   `koanf:"nats_url"`
	Bucket        string   `koanf:"bucket"`
	ForwardURL    string   `koanf:"forward_url"`
	ForwardAPIKey Secret   `koanf:"forward_api_key"`
	Timeout       Duration `koanf:"timeout"`
}

// AudioConfig configures audio blob storage.
type AudioConfig struct {
	Dir          string `koanf:"dir"`
	MaxSizeBytes int64  `koanf:"max_size_bytes"`
}

// LoggingConfig is the subset of logging settings exposed in the file.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	Sampling bool   `koanf:"sampling"`
	OTEL     bool   `koanf:"otel"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := seed()
	applyDefaults(&cfg)
	return &cfg
}

// seed holds defaults whose zero value is a valid setting, so they must be
// in place before the file and environment are decoded over them. The
// relay is on by default because export.base_url points at this daemon.
func seed() Config {
	return Config{Relay: RelayConfig{Enabled: true}}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}

	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("store.backend must be 'file' or 'sqlite', got %q", c.Store.Backend))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Store.Watch && c.Store.Backend != "file" {
		errs = append(errs, errors.New("store.watch requires the file backend"))
	}

	if c.Export.BaseURL != "" {
		u, err := url.Parse(c.Export.BaseURL)
		if err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("export.base_url must be an absolute URL, got %q", c.Export.BaseURL))
		}
	}

	if c.Relay.Enabled {
		switch c.Relay.Backend {
		case "dir":
			if c.Relay.Dir == "" {
				errs = append(errs, errors.New("relay.dir is required for the dir backend"))
			}
		case "nats":
			if c.Relay.NATSURL == "" || c.Relay.Bucket == "" {
				errs = append(errs, errors.New("relay.nats_url and relay.bucket are required for the nats backend"))
			}
		case "forward":
			if c.Relay.ForwardURL == "" {
				errs = append(errs, errors.New("relay.forward_url is required for the forward backend"))
			}
		default:
			errs = append(errs, fmt.Errorf("relay.backend must be 'dir', 'nats' or 'forward', got %q", c.Relay.Backend))
		}
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("telemetry.sample_rate must be 0-1, got %v", c.Telemetry.SampleRate))
		}
	}

	return errors.Join(errs...)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	if cfg.Store.Path == "" {
		if cfg.Store.Backend == "sqlite" {
			cfg.Store.Path = "~/.local/share/motorqc/motorqc.db"
		} else {
			cfg.Store.Path = "~/.local/share/motorqc/motor-data-storage.json"
		}
	}

	if cfg.Export.Endpoint == "" {
		cfg.Export.Endpoint = "/api/upload"
	}
	if cfg.Export.BaseURL == "" {
		cfg.Export.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "~/.local/share/motorqc/exports"
	}

	if cfg.Relay.Backend == "" {
		cfg.Relay.Backend = "dir"
	}
	if cfg.Relay.Dir == "" {
		cfg.Relay.Dir = "~/.local/share/motorqc/relay"
	}
	if cfg.Relay.Bucket == "" {
		cfg.Relay.Bucket = "motorqc-exports"
	}
	if cfg.Relay.Timeout == 0 {
		cfg.Relay.Timeout = Duration(30 * time.Second)
	}

	if cfg.Audio.Dir == "" {
		cfg.Audio.Dir = "~/.local/share/motorqc/audio"
	}
	if cfg.Audio.MaxSizeBytes == 0 {
		cfg.Audio.MaxSizeBytes = 25 << 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "motorqc"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}
