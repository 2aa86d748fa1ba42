// dl is the draftline CLI: a branch lifecycle tracker that keeps every
// draft traceable to a published trunk state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/access"
	"github.com/draftline/draftline/internal/approval"
	"github.com/draftline/draftline/internal/branch"
	"github.com/draftline/draftline/internal/config"
	"github.com/draftline/draftline/internal/lineage"
	"github.com/draftline/draftline/internal/membership"
	"github.com/draftline/draftline/internal/refs"
	"github.com/draftline/draftline/internal/refs/gitrefs"
	refsmemory "github.com/draftline/draftline/internal/refs/memory"
	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/storage/factory"
	"github.com/draftline/draftline/internal/telemetry"
	"github.com/draftline/draftline/internal/types"
)

// Version is set at build time via -ldflags.
var (
	Version = "dev"
	Build   = "unknown"
)

var (
	dbPath     string
	actorFlag  string
	rolesFlag  string
	jsonOutput bool

	draftlineDir string
	store        storage.Storage
	engine       *branch.Engine
	reviews      *approval.FileReviews

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

// noDbCommands run without a project directory or database.
var noDbCommands = map[string]bool{
	"init":       true,
	"version":    true,
	"help":       true,
	"completion": true,
}

func isNoDbCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if noDbCommands[c.Name()] {
			return true
		}
	}
	return false
}

// currentActor builds the identity attached to every transition. Roles come
// from --roles and the config file; the flag wins on conflict.
func currentActor() access.Actor {
	var roles []access.Role
	raw := rolesFlag
	if raw == "" {
		raw = strings.Join(config.Roles(), ",")
	}
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, access.Role(r))
		}
	}
	return access.Actor{
		UserID:        config.Actor(actorFlag),
		Authenticated: true,
		Roles:         roles,
	}
}

// userDirectory builds the membership directory from config.yaml's users
// list. Returns nil when no directory is configured; the engine then skips
// user existence checks.
func userDirectory() *membership.Manager {
	entries := config.Users()
	if len(entries) == 0 {
		return nil
	}
	dir := membership.NewStaticDirectory()
	for _, e := range entries {
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		dir.AddUser(&types.User{ID: e.ID, Name: e.Name, Email: e.Email, Active: active})
	}
	return membership.NewManager(dir)
}

// openRefProvider prefers the real git repository; outside one it falls back
// to the in-process provider so dl remains usable for demos and tests.
func openRefProvider(trunks []string) refs.Provider {
	cwd, err := os.Getwd()
	if err == nil {
		if p, err := gitrefs.Open(cwd); err == nil {
			return p
		}
	}
	fmt.Fprintln(os.Stderr, "Warning: no git repository found; using in-memory refs")
	return refsmemory.New(trunks...)
}

func openEngine() error {
	startDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	draftlineDir, err = config.FindDraftlineDir(startDir)
	if err != nil {
		return fmt.Errorf("%w (run 'dl init' first)", err)
	}
	if err := config.Init(draftlineDir); err != nil {
		return err
	}

	path := dbPath
	if path == "" {
		path = config.DBPath()
	}
	store, err = factory.New(rootCtx, config.Backend(), path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	store = telemetry.WrapStorage(store)

	reviews, err = approval.OpenFileReviews(filepath.Join(draftlineDir, "reviews.jsonl"))
	if err != nil {
		return err
	}

	trunks := config.Trunks()
	provider := openRefProvider(trunks)
	guard := lineage.NewGuard(store, provider, trunks)
	aggregator := approval.NewAggregator(reviews)
	engine = branch.New(store, provider, guard, aggregator, userDirectory())
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "dl",
	Short: "dl - Branch lifecycle tracker",
	Long: `Draft branches chained to their trunk. dl tracks each branch from
draft through review, approval, and publication, and refuses to lose track
of where a branch forked from.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("dl version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		if err := telemetry.Init(rootCtx, "dl", Version); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: telemetry init failed: %v\n", err)
		}

		if isNoDbCommand(cmd) {
			return nil
		}
		return openEngine()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		telemetry.Shutdown(shutdownCtx)
		cancel()
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: from .draftline/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Actor for the transition log (default: $DRAFTLINE_ACTOR, config, $USER)")
	rootCmd.PersistentFlags().StringVar(&rolesFlag, "roles", "", "Comma-separated actor roles (admin, publisher, reviewer, contributor)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
