package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LocalConfig represents the subset of config.yaml fields that need to be
// read directly from the file rather than through the viper singleton. This
// is needed when the CWD has changed since config initialization, or when
// checking config before viper is initialized.
//
// Using proper YAML parsing handles edge cases like comments, indentation,
// and special characters that regex-based parsing would miss.
type LocalConfig struct {
	Database          string   `yaml:"db"`
	Backend           string   `yaml:"backend"`
	Actor             string   `yaml:"actor"`
	Trunks            []string `yaml:"trunks"`
	RequiredApprovals int      `yaml:"required-approvals"`
}

// LoadLocalConfig reads and parses config.yaml directly from the specified
// draftline directory, bypassing the viper singleton.
//
// Returns an empty LocalConfig (not nil) if the file doesn't exist or can't
// be parsed.
func LoadLocalConfig(draftlineDir string) *LocalConfig {
	configPath := filepath.Join(draftlineDir, ConfigFileName)
	data, err := os.ReadFile(configPath) // #nosec G304 - config file path from draftlineDir
	if err != nil {
		return &LocalConfig{}
	}

	var cfg LocalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &LocalConfig{}
	}

	return &cfg
}

// LoadLocalConfigWithEnv reads config.yaml and applies environment variable
// overrides. Environment variables take precedence over file values.
//
// Supported environment variables:
//   - DRAFTLINE_DB: overrides db
//   - DRAFTLINE_ACTOR: overrides actor
//   - DRAFTLINE_TRUNKS: comma-separated, overrides trunks
func LoadLocalConfigWithEnv(draftlineDir string) *LocalConfig {
	cfg := LoadLocalConfig(draftlineDir)

	if envDB := os.Getenv("DRAFTLINE_DB"); envDB != "" {
		cfg.Database = envDB
	}
	if envActor := os.Getenv("DRAFTLINE_ACTOR"); envActor != "" {
		cfg.Actor = envActor
	}
	if envTrunks := os.Getenv("DRAFTLINE_TRUNKS"); envTrunks != "" {
		var trunks []string
		for _, t := range strings.Split(envTrunks, ",") {
			if t = strings.TrimSpace(t); t != "" {
				trunks = append(trunks, t)
			}
		}
		if len(trunks) > 0 {
			cfg.Trunks = trunks
		}
	}

	return cfg
}

// GetLocalTrunks reads the trunk list from the local config.yaml file with
// environment overrides, falling back to the built-in defaults.
func GetLocalTrunks(draftlineDir string) []string {
	if t := LoadLocalConfigWithEnv(draftlineDir).Trunks; len(t) > 0 {
		return t
	}
	return DefaultTrunks
}
