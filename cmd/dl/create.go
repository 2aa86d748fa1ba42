package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/branch"
	"github.com/draftline/draftline/internal/config"
	"github.com/draftline/draftline/internal/types"
)

var createCmd = &cobra.Command{
	Use:     "create [name]",
	Aliases: []string{"new"},
	Short:   "Create a new draft branch forked from a trunk",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		baseRef, _ := cmd.Flags().GetString("base")
		if baseRef == "" {
			baseRef = config.Trunks()[0]
		}
		description, _ := cmd.Flags().GetString("description")
		visibility, _ := cmd.Flags().GetString("visibility")
		approvals, _ := cmd.Flags().GetInt("approvals")
		labels, _ := cmd.Flags().GetStringSlice("label")

		if approvals == 0 {
			approvals = config.RequiredApprovals()
		}

		actor := currentActor()
		b, err := engine.Create(rootCtx, branch.CreateInput{
			Name:              args[0],
			Description:       description,
			BaseRef:           baseRef,
			Visibility:        types.Visibility(visibility),
			RequiredApprovals: approvals,
			Labels:            labels,
		}, actor.UserID)
		if err != nil {
			FatalError("%v", err)
		}

		if jsonOutput {
			outputJSON(b)
			return
		}
		fmt.Printf("Created branch %s (%s) from %s\n", b.ID, b.Slug, b.BaseRef)
	},
}

func init() {
	createCmd.Flags().String("base", "", "Trunk ref to fork from (default: first configured trunk)")
	createCmd.Flags().StringP("description", "d", "", "Branch description")
	createCmd.Flags().String("visibility", "", "Visibility: private, team, or public (default: private)")
	createCmd.Flags().Int("approvals", 0, "Approvals required before this branch can publish (1-10)")
	createCmd.Flags().StringSlice("label", nil, "Label to attach (repeatable)")
	rootCmd.AddCommand(createCmd)
}
