package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"nftlend/native/lending"
)

type Config struct {
	RPCAddress     string   `toml:"RPCAddress"`
	MetricsAddress string   `toml:"MetricsAddress"`
	DataDir        string   `toml:"DataDir"`
	Environment    string   `toml:"Environment"`
	PausedModules  []string `toml:"PausedModules"`

	Lending lending.Params `toml:"lending"`
}

// Load reads the configuration from the given path, creating a commented
// default file when none exists.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if err := c.Lending.Validate(); err != nil {
		return err
	}
	return nil
}

// Pauses returns the configured pause switches as a static view.
func (c *Config) Pauses() map[string]bool {
	paused := make(map[string]bool, len(c.PausedModules))
	for _, module := range c.PausedModules {
		module = strings.TrimSpace(module)
		if module != "" {
			paused[module] = true
		}
	}
	return paused
}

func defaultConfig() *Config {
	return &Config{
		RPCAddress:     ":8545",
		MetricsAddress: ":9464",
		DataDir:        "./lend-data",
		Environment:    "local",
	}
}

func applyDefaults(cfg *Config) {
	defaults := defaultConfig()
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = defaults.RPCAddress
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = defaults.MetricsAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaults.DataDir
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = defaults.Environment
	}
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
