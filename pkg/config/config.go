// Package config loads the client configuration from a .env file, the
// environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/citahub/appchain-go/pkg/log"
	"github.com/citahub/appchain-go/pkg/rpc"
)

const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the client configuration
type Config struct {
	NodeURL        string        `env:"APPCHAIN_NODE_URL" yaml:"node_url" validate:"required,url"`
	Transport      string        `env:"APPCHAIN_TRANSPORT" env-default:"http" yaml:"transport" validate:"oneof=http ws"`
	BatchCapacity  int           `env:"APPCHAIN_BATCH_CAPACITY" env-default:"32" yaml:"batch_capacity" validate:"gte=0,lte=1024"` // 0 disables batching
	BatchMaxWait   time.Duration `env:"APPCHAIN_BATCH_MAX_WAIT" env-default:"100ms" yaml:"batch_max_wait" validate:"gt=0"`
	RequestTimeout time.Duration `env:"APPCHAIN_REQUEST_TIMEOUT" env-default:"10s" yaml:"request_timeout" validate:"gt=0"`
	JournalPath    string        `env:"APPCHAIN_JOURNAL_PATH" yaml:"journal_path"`
	MetricsAddr    string        `env:"APPCHAIN_METRICS_ADDR" yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	Log            log.Config    `env-prefix:"APPCHAIN_" yaml:"log"`
}

var validate = validator.New()

// Load reads dir/.env if it exists, then the environment. Variables already
// set in the environment win over the .env file.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads a YAML file and overlays the environment on top of it.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field rules and that the URL scheme fits the transport.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	u, err := url.Parse(c.NodeURL)
	if err != nil {
		return fmt.Errorf("%w: node url: %w", ErrInvalidConfig, err)
	}
	want := map[string][]string{
		TransportHTTP: {"http", "https"},
		TransportWS:   {"ws", "wss"},
	}[c.Transport]
	for _, scheme := range want {
		if u.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("%w: %s transport cannot use a %q url", ErrInvalidConfig, c.Transport, u.Scheme)
}

// DispatcherConfig returns the dispatcher settings.
func (c *Config) DispatcherConfig() rpc.DispatcherConfig {
	cfg := rpc.DefaultDispatcherConfig
	cfg.Policy = rpc.Batch(c.BatchCapacity)
	cfg.MaxWait = c.BatchMaxWait
	if c.RequestTimeout > 0 {
		cfg.RoundTripTimeout = c.RequestTimeout
	}
	return cfg
}

// NewTransport returns the transport selected by Transport.
func (c *Config) NewTransport() (rpc.Transport, error) {
	switch c.Transport {
	case TransportWS:
		return rpc.NewWebsocketTransport(rpc.WebsocketTransportConfig{
			URL:          c.NodeURL,
			WriteTimeout: c.RequestTimeout,
		}), nil
	case TransportHTTP, "":
		return rpc.NewHTTPTransport(rpc.HTTPTransportConfig{
			URL:     c.NodeURL,
			Timeout: c.RequestTimeout,
		})
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	}
}

// Write encodes the configuration as YAML, in the form LoadFile reads.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
