// Package config loads lc3sim.yaml and the LC3SIM_* environment overrides.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"lc3tools/pkg/lc3os"
	"lc3tools/pkg/sim"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

const (
	FileName  = "lc3sim.yaml"
	EnvPrefix = "LC3SIM_"
)

type OSConfig struct {
	// Object replaces the built-in OS image when set.
	Object  string `yaml:"object,omitempty"`
	Symbols string `yaml:"symbols,omitempty"`
}

type GUIConfig struct {
	Scale int `yaml:"scale"`
	// Speed is the instruction budget per frame.
	Speed int `yaml:"speed"`
	// Reload reloads the program when its object file changes.
	Reload bool `yaml:"reload"`
}

type Config struct {
	Options  sim.Options `yaml:"options"`
	OS       OSConfig    `yaml:"os"`
	GUI      GUIConfig   `yaml:"gui"`
	LogLevel string      `yaml:"log_level"`
	// Seed fixes random device timing when non-zero.
	Seed uint64 `yaml:"seed"`
}

// Default returns the settings used when no file or variable overrides
// them: every simulator option on, the built-in OS.
func Default() *Config {
	return &Config{
		Options:  sim.DefaultOptions(),
		GUI:      GUIConfig{Scale: 2, Speed: 20000, Reload: true},
		LogLevel: "warn",
	}
}

// Load reads the config file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrapf(err, "invalid %s", path)
	}
	return cfg, nil
}

// Resolve finds the configuration for a command. An explicit path must
// exist; otherwise lc3sim.yaml in dir is used if present. A .env file in
// dir is loaded first, and LC3SIM_* variables are applied last.
func Resolve(explicit, dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "failed to load .env")
	}

	var cfg *Config
	var err error
	if explicit != "" {
		cfg, err = Load(explicit)
	} else {
		cfg, err = Load(filepath.Join(dir, FileName))
		if errors.Is(err, ErrConfigNotFound) {
			cfg, err = Default(), nil
		}
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from LC3SIM_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	bools := map[string]*bool{
		"FLUSH":      &c.Options.Flush,
		"KEEP":       &c.Options.Keep,
		"DEVICE":     &c.Options.Device,
		"STDIN":      &c.Options.Stdin,
		"GUI_RELOAD": &c.GUI.Reload,
	}
	for name, dst := range bools {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		b, err := parseSwitch(v)
		if err != nil {
			return eris.Wrapf(err, "%s%s", EnvPrefix, name)
		}
		*dst = b
	}

	ints := map[string]*int{
		"GUI_SCALE": &c.GUI.Scale,
		"GUI_SPEED": &c.GUI.Speed,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return eris.Wrapf(err, "%s%s", EnvPrefix, name)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "SEED"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 0, 64)
		if err != nil {
			return eris.Wrapf(err, "%sSEED", EnvPrefix)
		}
		c.Seed = n
	}
	if v, ok := lookup(EnvPrefix + "OS_OBJECT"); ok {
		c.OS.Object = v
	}
	if v, ok := lookup(EnvPrefix + "OS_SYMBOLS"); ok {
		c.OS.Symbols = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	return c.Validate()
}

// parseSwitch accepts on/off as well as the strconv boolean spellings.
func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(v))
}

func (c *Config) Validate() error {
	if c.GUI.Scale < 1 || c.GUI.Scale > 8 {
		return eris.Errorf("gui scale must be between 1 and 8, got %d", c.GUI.Scale)
	}
	if c.GUI.Speed < 1 {
		return eris.Errorf("gui speed must be positive, got %d", c.GUI.Speed)
	}
	if c.OS.Symbols != "" && c.OS.Object == "" {
		return eris.New("os symbols given without an os object")
	}
	return nil
}

// LoadOS returns the configured OS image, or nil for the built-in one.
func (c *Config) LoadOS() (*lc3os.OS, error) {
	if c.OS.Object == "" {
		return nil, nil
	}
	return lc3os.LoadFiles(c.OS.Object, c.OS.Symbols)
}
