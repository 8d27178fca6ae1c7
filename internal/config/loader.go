package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a single YAML file into Config, starting from Default() so
// any field the file omits keeps its default value, and expanding
// ${VAR}/$VAR environment references in the raw bytes before parsing.
// Simplified from the teacher's internal/config/loader.go $include
// resolver: this module's configuration is a single flat document, so
// cross-file includes and JSON5 support are not carried over.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
