package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/lineage"
)

var lineageCmd = &cobra.Command{
	Use:   "lineage [id|slug]",
	Short: "Validate a branch's lineage against its trunk",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		validation, err := engine.ValidateLineage(rootCtx, b.ID)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(validation)
			return
		}
		if validation.Valid {
			fmt.Printf("Branch %s lineage is intact (traces to main: %v)\n", b.ID, validation.TracesToMain)
		} else {
			fmt.Printf("Branch %s lineage is broken: %s\n", b.ID, validation.Reason)
		}
	},
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Detect branches whose trunk lineage is broken",
	Run: func(cmd *cobra.Command, args []string) {
		orphans, err := engine.DetectOrphans(rootCtx)
		if err != nil {
			FatalError("%v", err)
		}

		doArchive, _ := cmd.Flags().GetBool("archive")
		doFlag, _ := cmd.Flags().GetBool("flag")
		if doArchive && doFlag {
			FatalError("--archive and --flag are mutually exclusive")
		}

		if doArchive || doFlag {
			action := lineage.ActionFlag
			if doArchive {
				action = lineage.ActionArchive
			}
			ids := make([]string, 0, len(orphans))
			for _, o := range orphans {
				ids = append(ids, o.BranchID)
			}
			reason, _ := cmd.Flags().GetString("reason")
			if err := engine.HandleOrphans(rootCtx, currentActor(), ids, action, reason); err != nil {
				FatalError("%v", err)
			}
		}

		if jsonOutput {
			outputJSON(orphans)
			return
		}
		if len(orphans) == 0 {
			fmt.Println("No orphaned branches.")
			return
		}
		for _, o := range orphans {
			fmt.Printf("%-10s %-40s %s\n", o.BranchID, o.Slug, o.Reason)
		}
		if doArchive {
			fmt.Printf("Archived %d orphaned branches.\n", len(orphans))
		}
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair [id|slug]",
	Short: "Return a stuck branch (changes requested, no active review) to draft",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Look up through the store directly: the engine's read path would
		// auto-reconcile and leave nothing for the explicit repair to do.
		b, err := store.GetBranch(rootCtx, args[0])
		if err != nil {
			b, err = store.GetBranchBySlug(rootCtx, args[0])
			if err != nil {
				FatalError("branch %s not found", args[0])
			}
		}
		repaired, err := engine.RepairStuckBranch(rootCtx, b.ID)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(repaired)
			return
		}
		fmt.Printf("Branch %s repaired: now %s\n", repaired.ID, repaired.State)
	},
}

var readyCmd = &cobra.Command{
	Use:   "ready [id|slug]",
	Short: "Check whether a branch is ready to converge into its trunk",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		ready, reason, err := engine.IsConvergenceReady(rootCtx, b.ID)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"ready": ready, "reason": reason})
			return
		}
		if ready {
			fmt.Printf("Branch %s is ready to converge\n", b.ID)
		} else {
			fmt.Printf("Branch %s is not ready: %s\n", b.ID, reason)
		}
	},
}

func init() {
	orphansCmd.Flags().Bool("archive", false, "Archive all detected orphans (admin)")
	orphansCmd.Flags().Bool("flag", false, "Flag orphans for operator review without archiving")
	orphansCmd.Flags().String("reason", "", "Reason recorded on archived orphans")
	rootCmd.AddCommand(lineageCmd)
	rootCmd.AddCommand(orphansCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(readyCmd)
}
