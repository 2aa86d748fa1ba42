package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/access"
	"github.com/draftline/draftline/internal/types"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List branches",
	Run: func(cmd *cobra.Command, args []string) {
		filter := types.BranchFilter{}

		if owner, _ := cmd.Flags().GetString("owner"); owner != "" {
			filter.OwnerID = &owner
		}
		if state, _ := cmd.Flags().GetString("state"); state != "" {
			s := types.BranchState(state)
			if !s.IsValid() {
				FatalError("invalid state %q", state)
			}
			filter.State = &s
		}
		if vis, _ := cmd.Flags().GetString("visibility"); vis != "" {
			v := types.Visibility(vis)
			if !v.IsValid() {
				FatalError("invalid visibility %q", vis)
			}
			filter.Visibility = &v
		}
		filter.Labels, _ = cmd.Flags().GetStringSlice("label")
		filter.TitleSearch, _ = cmd.Flags().GetString("search")
		filter.IncludeArchived, _ = cmd.Flags().GetBool("all")
		filter.Limit, _ = cmd.Flags().GetInt("limit")
		filter.Offset, _ = cmd.Flags().GetInt("offset")

		branches, err := engine.List(rootCtx, filter)
		if err != nil {
			FatalError("%v", err)
		}

		// Listing respects per-branch visibility; rows the actor cannot
		// read are dropped rather than erroring the whole listing.
		actor := currentActor()
		visible := branches[:0]
		for _, b := range branches {
			if access.CheckAccess(b, actor).Allowed {
				visible = append(visible, b)
			}
		}

		if jsonOutput {
			outputJSON(visible)
			return
		}
		if len(visible) == 0 {
			fmt.Println("No branches found.")
			return
		}
		for _, b := range visible {
			printBranchLine(b)
		}
	},
}

func init() {
	listCmd.Flags().String("owner", "", "Filter by owner")
	listCmd.Flags().String("state", "", "Filter by state (draft, review, approved, published, archived)")
	listCmd.Flags().String("visibility", "", "Filter by visibility (private, team, public)")
	listCmd.Flags().StringSlice("label", nil, "Filter by label (repeatable; all must match)")
	listCmd.Flags().String("search", "", "Substring match on branch name")
	listCmd.Flags().BoolP("all", "a", false, "Include archived branches")
	listCmd.Flags().Int("limit", 0, "Maximum rows to return")
	listCmd.Flags().Int("offset", 0, "Rows to skip")
	rootCmd.AddCommand(listCmd)
}
