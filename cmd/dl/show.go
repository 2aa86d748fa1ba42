package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/types"
)

var showCmd = &cobra.Command{
	Use:   "show [id|slug]",
	Short: "Show a branch",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}

		actor := currentActor()
		decision, err := engine.CheckAccess(rootCtx, b.ID, actor)
		if err != nil {
			FatalError("%v", err)
		}
		if !decision.Allowed {
			FatalError("access denied: %s", decision.Reason)
		}

		withPerms, _ := cmd.Flags().GetBool("permissions")

		if jsonOutput {
			if withPerms {
				perms, err := engine.Permissions(rootCtx, b.ID, actor)
				if err != nil {
					FatalError("%v", err)
				}
				outputJSON(map[string]interface{}{"branch": b, "permissions": perms})
				return
			}
			outputJSON(b)
			return
		}

		printBranch(b)
		if withPerms {
			perms, err := engine.Permissions(rootCtx, b.ID, actor)
			if err != nil {
				FatalError("%v", err)
			}
			fmt.Printf("  can edit: %v  review: %v  publish: %v  delete: %v  change visibility: %v\n",
				perms.CanEdit, perms.CanReview, perms.CanPublish, perms.CanDelete, perms.CanChangeVisibility)
		}
	},
}

var slugCmd = &cobra.Command{
	Use:   "slug [slug]",
	Short: "Check whether a slug is available",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		available, err := engine.IsSlugAvailable(rootCtx, args[0])
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]bool{"available": available})
			return
		}
		if available {
			fmt.Printf("%s is available\n", args[0])
		} else {
			fmt.Printf("%s is taken\n", args[0])
		}
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate branch counts",
	Run: func(cmd *cobra.Command, args []string) {
		stats, err := engine.Stats(rootCtx)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(stats)
			return
		}
		printStats(stats)
	},
}

func printStats(s *types.Statistics) {
	fmt.Printf("total:     %d\n", s.Total)
	fmt.Printf("draft:     %d\n", s.DraftCount)
	fmt.Printf("review:    %d\n", s.ReviewCount)
	fmt.Printf("approved:  %d\n", s.ApprovedCount)
	fmt.Printf("published: %d\n", s.PublishedCount)
	fmt.Printf("archived:  %d\n", s.ArchivedCount)
}

func init() {
	showCmd.Flags().Bool("permissions", false, "Include the actor's effective permissions")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(slugCmd)
	rootCmd.AddCommand(statsCmd)
}
