package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/branch"
	"github.com/draftline/draftline/internal/types"
)

var updateCmd = &cobra.Command{
	Use:   "update [id|slug]",
	Short: "Update a draft branch's name, description, or labels",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}

		var input branch.UpdateInput
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			input.Name = &name
		}
		if cmd.Flags().Changed("description") {
			desc, _ := cmd.Flags().GetString("description")
			input.Description = &desc
		}
		if cmd.Flags().Changed("label") {
			input.Labels, _ = cmd.Flags().GetStringSlice("label")
		}

		updated, err := engine.Update(rootCtx, b.ID, currentActor(), input)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(updated)
			return
		}
		fmt.Printf("Updated branch %s\n", updated.ID)
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete [id|slug]",
	Aliases: []string{"rm"},
	Short:   "Delete (archive) a draft branch and remove its ref",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		if err := engine.Delete(rootCtx, b.ID, currentActor()); err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"deleted": b.ID})
			return
		}
		fmt.Printf("Deleted branch %s\n", b.ID)
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive [id|slug]",
	Short: "Archive a branch from any state (admin beyond draft)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		reason, _ := cmd.Flags().GetString("reason")
		if err := engine.Archive(rootCtx, b.ID, currentActor(), reason); err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"archived": b.ID})
			return
		}
		fmt.Printf("Archived branch %s\n", b.ID)
	},
}

var visibilityCmd = &cobra.Command{
	Use:   "visibility [id|slug] [private|team|public]",
	Short: "Change a draft branch's visibility",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		target := types.Visibility(args[1])
		if !target.IsValid() {
			FatalError("invalid visibility %q", args[1])
		}
		updated, err := engine.UpdateVisibility(rootCtx, b.ID, currentActor(), target)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(updated)
			return
		}
		fmt.Printf("Branch %s is now %s\n", updated.ID, updated.Visibility)
	},
}

var approvalsCmd = &cobra.Command{
	Use:   "approvals [id|slug] [n]",
	Short: "Set a branch's required approval count (admin only)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		var n int
		if _, err := fmt.Sscanf(args[1], "%d", &n); err != nil {
			FatalError("approvals must be a number, got %q", args[1])
		}
		updated, err := engine.SetRequiredApprovals(rootCtx, b.ID, currentActor(), n)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(updated)
			return
		}
		fmt.Printf("Branch %s now requires %d approvals\n", updated.ID, updated.EffectiveRequiredApprovals())
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit [id|slug] [sha]",
	Short: "Record a new head commit for the branch",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		updated, err := engine.UpdateHeadCommit(rootCtx, b.ID, currentActor(), args[1])
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(updated)
			return
		}
		fmt.Printf("Branch %s head is now %s\n", updated.ID, shortCommit(updated.HeadCommit))
	},
}

func init() {
	updateCmd.Flags().String("name", "", "New branch name")
	updateCmd.Flags().StringP("description", "d", "", "New description")
	updateCmd.Flags().StringSlice("label", nil, "Replace labels (repeatable)")
	archiveCmd.Flags().String("reason", "", "Reason recorded in the transition log")
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(visibilityCmd)
	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(commitCmd)
}
