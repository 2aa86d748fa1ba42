// Package configfile reads and writes .draftline/metadata.json, the
// machine-managed project descriptor. Human-edited settings live in
// config.yaml (internal/config); metadata.json holds what dl itself
// maintains: the database filename and the project identity.
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const ConfigFileName = "metadata.json"

type Config struct {
	Database string `json:"database"`

	// ProjectName is the identifier used in branch slugs and exported
	// records. Auto-detected from the git remote when empty.
	ProjectName string `json:"project_name,omitempty"`

	// DefaultTrunk is the trunk offered when branch creation does not name
	// one (defaults to "main").
	DefaultTrunk string `json:"default_trunk,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Database: "draftline.db",
	}
}

func ConfigPath(draftlineDir string) string {
	return filepath.Join(draftlineDir, ConfigFileName)
}

// Load reads metadata.json from the draftline directory. Returns (nil, nil)
// when the file does not exist, so callers can distinguish "uninitialized"
// from a read failure.
func Load(draftlineDir string) (*Config, error) {
	configPath := ConfigPath(draftlineDir)

	data, err := os.ReadFile(configPath) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Save(draftlineDir string) error {
	configPath := ConfigPath(draftlineDir)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func (c *Config) DatabasePath(draftlineDir string) string {
	return filepath.Join(draftlineDir, c.Database)
}

// GetProjectName returns the configured project name, or auto-detects from
// git if empty. Returns empty string if neither is available.
func (c *Config) GetProjectName() string {
	if c.ProjectName != "" {
		return c.ProjectName
	}
	return detectProjectFromGitRemote()
}

// GetDefaultTrunk returns the configured default trunk, defaulting to "main".
func (c *Config) GetDefaultTrunk() string {
	if c.DefaultTrunk != "" {
		return c.DefaultTrunk
	}
	return "main"
}

// detectProjectFromGitRemote extracts the project name from the git remote
// URL. Returns empty string if git is not available or remote is not
// configured.
func detectProjectFromGitRemote() string {
	cmd := exec.Command("git", "config", "--get", "remote.origin.url")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}

	url := strings.TrimSpace(string(output))
	if url == "" {
		return ""
	}

	if strings.HasSuffix(url, ".git") {
		url = url[:len(url)-4]
	}

	// SSH URLs (git@github.com:user/repo)
	if strings.Contains(url, ":") {
		parts := strings.SplitN(url, ":", 2)
		if len(parts) == 2 {
			url = parts[1]
		}
	}

	// HTTPS URLs (https://github.com/user/repo)
	if strings.Contains(url, "://") {
		parts := strings.SplitN(url, "://", 2)
		if len(parts) == 2 {
			url = parts[1]
		}
	}

	if strings.Contains(url, "/") {
		parts := strings.Split(url, "/")
		if len(parts) > 0 {
			return parts[len(parts)-1]
		}
	}

	// Local path remote; use the basename.
	return filepath.Base(url)
}
