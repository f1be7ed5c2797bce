// Package config provides configuration helpers for go-g1 commands.
//
// Values are resolved in this order: built-in defaults, an optional YAML file
// (G1_CONFIG), then environment variables. A .env file in the working
// directory is loaded first so its values behave like real env vars.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for the G1 loco service bridge.
const (
	DefaultEndpoint = "http://192.168.123.164:8080"
	DefaultDomainID = 0
	DefaultTimeout  = 10 * time.Second
)

// Default teleoperation speeds.
const (
	DefaultForwardSpeed  = 0.3 // m/s
	DefaultLateralSpeed  = 0.2 // m/s
	DefaultRotationSpeed = 0.6 // rad/s
	DefaultSettleDelay   = time.Second
)

// Speeds holds the velocities used by keyboard and voice commands.
type Speeds struct {
	Forward     float64       `yaml:"forward"`
	Lateral     float64       `yaml:"lateral"`
	Rotation    float64       `yaml:"rotation"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// Config is the resolved runtime configuration shared by all commands.
type Config struct {
	Endpoint      string        `yaml:"endpoint"`
	DomainID      int           `yaml:"domain_id"`
	Timeout       time.Duration `yaml:"timeout"`
	LogLevel      string        `yaml:"log_level"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	AssemblyAIKey string        `yaml:"-"`
	Speeds        Speeds        `yaml:"speeds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		DomainID: DefaultDomainID,
		Timeout:  DefaultTimeout,
		LogLevel: "info",
		Speeds: Speeds{
			Forward:     DefaultForwardSpeed,
			Lateral:     DefaultLateralSpeed,
			Rotation:    DefaultRotationSpeed,
			SettleDelay: DefaultSettleDelay,
		},
	}
}

// LoadDotEnv loads .env files if present. Missing files are not an error.
// Existing environment variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load resolves the configuration from defaults, G1_CONFIG and the environment.
func Load() (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if path := os.Getenv("G1_CONFIG"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// MergeFile overlays values from a YAML file onto c.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto c.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("G1_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("G1_DOMAIN_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("G1_DOMAIN_ID: %w", err)
		}
		c.DomainID = id
	}
	if v := os.Getenv("G1_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("G1_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	c.AssemblyAIKey = os.Getenv("ASSEMBLYAI_API_KEY")
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("config: endpoint is required")
	}
	if c.DomainID < 0 {
		return fmt.Errorf("config: domain_id must be >= 0, got %d", c.DomainID)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %v", c.Timeout)
	}
	if c.Speeds.Forward <= 0 || c.Speeds.Lateral <= 0 || c.Speeds.Rotation <= 0 {
		return errors.New("config: speeds must be positive")
	}
	if c.Speeds.SettleDelay < 0 {
		return errors.New("config: settle_delay must not be negative")
	}
	return nil
}

// NetworkInterfaceRequired returns the first positional argument.
// Prints usage and exits if it is missing.
func NetworkInterfaceRequired(args []string) string {
	if len(args) < 1 || args[0] == "" {
		prog := filepath.Base(os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <network_interface>\n", prog)
		fmt.Fprintf(os.Stderr, "Example: %s eth0\n", prog)
		os.Exit(1)
	}
	return args[0]
}
