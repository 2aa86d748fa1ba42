// Package config loads draftline settings from .draftline/config.yaml with
// environment overrides. Settings flow through a viper instance initialized
// once at CLI startup; code paths that run before initialization (or after a
// working-directory change) read the file directly via LoadLocalConfig.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DirName is the per-project data directory.
const DirName = ".draftline"

// ConfigFileName is the YAML settings file inside DirName.
const ConfigFileName = "config.yaml"

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultBackend  = "sqlite"
	DefaultDatabase = "draftline.db"
)

// DefaultTrunks are the refs accepted as fork points when the config is
// silent.
var DefaultTrunks = []string{"main", "staging"}

var v *viper.Viper

// Init loads config.yaml from the given draftline directory and installs the
// environment bindings. Safe to call when the file does not exist; defaults
// and environment variables still apply.
func Init(draftlineDir string) error {
	nv := viper.New()
	nv.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
	nv.SetConfigType("yaml")
	nv.AddConfigPath(draftlineDir)

	nv.SetEnvPrefix("DRAFTLINE")
	nv.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	nv.AutomaticEnv()

	nv.SetDefault("backend", DefaultBackend)
	nv.SetDefault("db", filepath.Join(draftlineDir, DefaultDatabase))
	nv.SetDefault("trunks", DefaultTrunks)
	nv.SetDefault("required-approvals", 0)

	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errorsAs(err, &notFound) {
			return fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
		}
	}
	v = nv
	return nil
}

// errorsAs is a tiny indirection so Init reads linearly.
func errorsAs(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

// GetString returns a string setting, or "" before Init.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetStringSlice returns a list setting, or nil before Init.
func GetStringSlice(key string) []string {
	if v == nil {
		return nil
	}
	return v.GetStringSlice(key)
}

// GetInt returns an integer setting, or 0 before Init.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// Backend returns the configured storage backend name.
func Backend() string {
	if s := GetString("backend"); s != "" {
		return s
	}
	return DefaultBackend
}

// DBPath returns the configured database path.
func DBPath() string {
	return GetString("db")
}

// Trunks returns the refs branches may fork from.
func Trunks() []string {
	if t := GetStringSlice("trunks"); len(t) > 0 {
		return t
	}
	return DefaultTrunks
}

// RequiredApprovals returns the project-wide default approval threshold.
// Zero means unset; per-branch values and the built-in default take over.
func RequiredApprovals() int {
	return GetInt("required-approvals")
}

// UserEntry is one row of the optional `users:` directory in config.yaml.
type UserEntry struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	Email  string `mapstructure:"email"`
	Active *bool  `mapstructure:"active"`
}

// Users returns the user directory configured in config.yaml, if any.
// Entries without an explicit `active:` default to active.
func Users() []UserEntry {
	if v == nil {
		return nil
	}
	var users []UserEntry
	if err := v.UnmarshalKey("users", &users); err != nil {
		return nil
	}
	return users
}

// Roles returns the roles claimed by the local actor.
func Roles() []string {
	return GetStringSlice("roles")
}

// Actor resolves the identity recorded on transitions.
// Priority: --actor flag (passed in) > DRAFTLINE_ACTOR env > config file >
// $USER > "unknown".
func Actor(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("DRAFTLINE_ACTOR"); env != "" {
		return env
	}
	if s := GetString("actor"); s != "" {
		return s
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// FindDraftlineDir walks up from startDir looking for a .draftline
// directory. Returns the directory path or an error when no project root is
// found.
func FindDraftlineDir(startDir string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s directory found in %s or any parent", DirName, startDir)
		}
		dir = parent
	}
}
