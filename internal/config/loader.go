package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	pkgconfig "github.com/goran-ethernal/MarketIndexor/pkg/config"
	"gopkg.in/yaml.v3"
)

type format struct {
	name      string
	unmarshal func(data []byte, v any) error
}

var formats = map[string]format{
	".yaml": {name: "YAML", unmarshal: yaml.Unmarshal},
	".yml":  {name: "YAML", unmarshal: yaml.Unmarshal},
	".json": {name: "JSON", unmarshal: json.Unmarshal},
	".toml": {name: "TOML", unmarshal: toml.Unmarshal},
}

// LoadFromFile reads the configuration at path, picking the decoder by extension
// (.yaml, .yml, .json, .toml), and returns it together with the network profile
// selected by its network field.
func LoadFromFile(path string) (*pkgconfig.Config, pkgconfig.NetworkConfig, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := formats[ext]; !ok {
		return nil, pkgconfig.NetworkConfig{},
			fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json, .toml)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgconfig.NetworkConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, ext)
}

// Parse decodes data in the format named by ext, applies defaults, validates the
// result and resolves the active network.
func Parse(data []byte, ext string) (*pkgconfig.Config, pkgconfig.NetworkConfig, error) {
	f, ok := formats[strings.ToLower(ext)]
	if !ok {
		return nil, pkgconfig.NetworkConfig{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	var cfg pkgconfig.Config
	if err := f.unmarshal(data, &cfg); err != nil {
		return nil, pkgconfig.NetworkConfig{}, fmt.Errorf("failed to parse %s config: %w", f.name, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, pkgconfig.NetworkConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	network, err := cfg.ActiveNetwork()
	if err != nil {
		return nil, pkgconfig.NetworkConfig{}, err
	}

	return &cfg, network, nil
}
