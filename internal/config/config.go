package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath   string = "detbench.yaml"
	DefaultBackendURL   string = "localhost:8080"
	DefaultDescriptor   string = "data.yaml"
	DefaultImageSubpath string = "images/val"

	envPrefix = "DETBENCH_"
)

var validate = validator.New()

type BackendConfig struct {
	URL            string        `koanf:"url" yaml:"url" validate:"required,hostname_port"`
	DialTimeout    time.Duration `koanf:"dial_timeout" yaml:"dial_timeout" validate:"gte=0"`
	RequestTimeout time.Duration `koanf:"request_timeout" yaml:"request_timeout" validate:"gte=0"`
}

type DatasetConfig struct {
	Descriptor   string `koanf:"descriptor" yaml:"descriptor" validate:"required"`
	ImageSubpath string `koanf:"image_subpath" yaml:"image_subpath"`
}

type PathsConfig struct {
	Model string `koanf:"model" yaml:"model"`
	Data  string `koanf:"data" yaml:"data"`
}

type WindowConfig struct {
	Width  float32 `koanf:"width" yaml:"width" validate:"gt=0"`
	Height float32 `koanf:"height" yaml:"height" validate:"gt=0"`
}

type LoggingConfig struct {
	Level string `koanf:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
}

type Config struct {
	mu   sync.RWMutex
	path string

	Backend BackendConfig `koanf:"backend" yaml:"backend"`
	Dataset DatasetConfig `koanf:"dataset" yaml:"dataset"`
	Paths   PathsConfig   `koanf:"paths" yaml:"paths"`
	Window  WindowConfig  `koanf:"window" yaml:"window"`
	Logging LoggingConfig `koanf:"logging" yaml:"logging"`
	Metrics MetricsConfig `koanf:"metrics" yaml:"metrics"`
}

func (c *Config) GetModelPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Paths.Model
}

func (c *Config) SetModelPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Paths.Model = path
}

func (c *Config) GetDataPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Paths.Data
}

func (c *Config) SetDataPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Paths.Data = path
}

func (c *Config) GetWindowSize() (float32, float32) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Window.Width, c.Window.Height
}

func (c *Config) SetWindowSize(width, height float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Window.Width = width
	c.Window.Height = height
}

// Path returns the file the config was loaded from, or the default path.
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.path == "" {
		return DefaultConfigPath
	}
	return c.path
}

func (c *Config) Save(path string) error {
	c.mu.RLock()
	data, err := yamlv3.Marshal(c)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) SaveByDefault() error {
	return c.Save(c.Path())
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Load reads configuration from a YAML file + environment variables.
// Loading order: defaults → YAML file → env vars (later overrides earlier).
// An empty path falls back to DefaultConfigPath, which may be missing.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := NewDefaultConfig()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
		cfg.path = path
	} else if _, err := os.Stat(DefaultConfigPath); err == nil {
		if err := k.Load(file.Provider(DefaultConfigPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", DefaultConfigPath, err)
		}
		cfg.path = DefaultConfigPath
	}

	// DETBENCH_BACKEND__URL → backend.url
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func NewDefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:         DefaultBackendURL,
			DialTimeout: 5 * time.Second,
		},
		Dataset: DatasetConfig{
			Descriptor:   DefaultDescriptor,
			ImageSubpath: DefaultImageSubpath,
		},
		Window: WindowConfig{
			Width:  1000,
			Height: 650,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
