package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/config"
	"github.com/draftline/draftline/internal/configfile"
	"github.com/draftline/draftline/internal/storage/factory"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a draftline project in the current directory",
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			FatalError("%v", err)
		}
		dir := filepath.Join(cwd, config.DirName)
		if _, err := os.Stat(dir); err == nil {
			FatalErrorWithHint(fmt.Sprintf("%s already exists", dir),
				"Delete it first if you want to reinitialize")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			FatalError("failed to create %s: %v", dir, err)
		}

		meta := configfile.DefaultConfig()
		if trunk, _ := cmd.Flags().GetString("trunk"); trunk != "" {
			meta.DefaultTrunk = trunk
		}
		if err := meta.Save(dir); err != nil {
			FatalError("failed to write metadata: %v", err)
		}

		if err := writeConfigTemplate(dir); err != nil {
			WarnError("failed to create config.yaml: %v", err)
		}

		backend, _ := cmd.Flags().GetString("backend")
		if backend == "" {
			backend = config.DefaultBackend
		}
		ctx := context.Background()
		s, err := factory.New(ctx, backend, meta.DatabasePath(dir))
		if err != nil {
			FatalError("failed to initialize database: %v", err)
		}
		if err := s.SetConfig(ctx, "initialized", "true"); err != nil {
			FatalError("failed to initialize database: %v", err)
		}
		_ = s.Close()

		if jsonOutput {
			outputJSON(map[string]string{"status": "initialized", "dir": dir})
			return
		}
		fmt.Printf("Initialized draftline project in %s\n", dir)
	},
}

// writeConfigTemplate creates a commented config.yaml so settings are
// discoverable without documentation.
func writeConfigTemplate(dir string) error {
	template := strings.Join([]string{
		"# draftline settings. Environment variables with the DRAFTLINE_ prefix",
		"# override any key here (e.g. DRAFTLINE_ACTOR, DRAFTLINE_DB).",
		"",
		"# trunks:",
		"#   - main",
		"#   - staging",
		"",
		"# Default approval threshold for new branches (1-10).",
		"# required-approvals: 1",
		"",
		"# actor: alice",
		"",
		"# Roles claimed by the local actor: admin, publisher, reviewer, contributor.",
		"# roles:",
		"#   - contributor",
		"",
		"# Optional user directory; when present, reviewer and collaborator",
		"# additions are checked against it.",
		"# users:",
		"#   - id: alice",
		"#     name: Alice",
		"#     email: alice@example.com",
		"",
	}, "\n")
	path := filepath.Join(dir, config.ConfigFileName)
	return os.WriteFile(path, []byte(template), 0600)
}

func init() {
	initCmd.Flags().String("trunk", "", "Default trunk ref for new branches")
	initCmd.Flags().String("backend", "", "Storage backend (sqlite or memory)")
	rootCmd.AddCommand(initCmd)
}
