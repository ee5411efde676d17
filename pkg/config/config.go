// Package config loads the service configuration from a TOML or YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/GwynCerbin/go_rabbit_service/pkg/adapter"
	"github.com/GwynCerbin/go_rabbit_service/pkg/httpx"
	"github.com/GwynCerbin/go_rabbit_service/pkg/logger"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultServicePort is the HTTP port of the composed service.
const DefaultServicePort = 8000

var errUnknownFormat = errors.New("unknown config format, want .toml, .yaml or .yml")

type Config struct {
	Broker adapter.Client `toml:"broker" yaml:"broker"`
	HTTP   httpx.Config   `toml:"http" yaml:"http"`
	Log    logger.Config  `toml:"log" yaml:"log"`
}

// Default is the configuration of a service talking to a local broker.
func Default() Config {
	httpCfg := httpx.DefaultConfig()
	httpCfg.Port = DefaultServicePort

	return Config{
		Broker: adapter.DefaultClient(),
		HTTP:   httpCfg,
		Log:    logger.DefaultConfig(),
	}
}

// Load reads path over the defaults; keys missing from the file keep their default.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		return Config{}, fmt.Errorf("%w: %s", errUnknownFormat, path)
	}

	if err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the values the service cannot start without.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Broker.URL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("broker url: %w", err))
	case u.Scheme != "amqp" && u.Scheme != "amqps":
		errs = append(errs, fmt.Errorf("broker url: scheme must be amqp or amqps, got %q", u.Scheme))
	}

	if c.Broker.Prefetch < 0 {
		errs = append(errs, fmt.Errorf("broker prefetch: must not be negative, got %d", c.Broker.Prefetch))
	}

	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http port: out of range: %d", c.HTTP.Port))
	}

	return errors.Join(errs...)
}
