package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var reviewerCmd = &cobra.Command{
	Use:   "reviewer",
	Short: "Manage a branch's reviewers",
}

var reviewerAddCmd = &cobra.Command{
	Use:   "add [id|slug] [user...]",
	Short: "Assign one or more reviewers (atomic: one bad user rejects all)",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		updated, err := engine.AddReviewers(rootCtx, b.ID, currentActor(), args[1:])
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(updated)
			return
		}
		fmt.Printf("Reviewers on %s: %s\n", updated.ID, strings.Join(updated.Reviewers, ", "))
	},
}

var reviewerRemoveCmd = &cobra.Command{
	Use:   "remove [id|slug] [user]",
	Short: "Unassign a reviewer (last reviewer in review returns the branch to draft)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		updated, err := engine.RemoveReviewer(rootCtx, b.ID, currentActor(), args[1])
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(updated)
			return
		}
		fmt.Printf("Removed %s from %s (state: %s)\n", args[1], updated.ID, updated.State)
	},
}

var reviewerCandidatesCmd = &cobra.Command{
	Use:   "candidates [id|slug] [query]",
	Short: "Search the user directory for eligible reviewers",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		query := ""
		if len(args) > 1 {
			query = args[1]
		}
		limit, _ := cmd.Flags().GetInt("limit")
		users, err := engine.SearchReviewerCandidates(rootCtx, b.ID, query, limit)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(users)
			return
		}
		if len(users) == 0 {
			fmt.Println("No candidates found.")
			return
		}
		for _, u := range users {
			fmt.Printf("%-20s %s <%s>\n", u.ID, u.Name, u.Email)
		}
	},
}

var collaboratorCmd = &cobra.Command{
	Use:     "collaborator",
	Aliases: []string{"collab"},
	Short:   "Manage a branch's collaborators",
}

var collaboratorAddCmd = &cobra.Command{
	Use:   "add [id|slug] [user]",
	Short: "Grant a user edit access",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		updated, err := engine.AddCollaborator(rootCtx, b.ID, currentActor(), args[1])
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(updated)
			return
		}
		fmt.Printf("Collaborators on %s: %s\n", updated.ID, strings.Join(updated.Collaborators, ", "))
	},
}

var collaboratorRemoveCmd = &cobra.Command{
	Use:   "remove [id|slug] [user]",
	Short: "Revoke a user's edit access",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		updated, err := engine.RemoveCollaborator(rootCtx, b.ID, currentActor(), args[1])
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(updated)
			return
		}
		fmt.Printf("Removed %s from %s\n", args[1], updated.ID)
	},
}

func init() {
	reviewerCandidatesCmd.Flags().Int("limit", 20, "Maximum candidates to return")
	reviewerCmd.AddCommand(reviewerAddCmd)
	reviewerCmd.AddCommand(reviewerRemoveCmd)
	reviewerCmd.AddCommand(reviewerCandidatesCmd)
	collaboratorCmd.AddCommand(collaboratorAddCmd)
	collaboratorCmd.AddCommand(collaboratorRemoveCmd)
	rootCmd.AddCommand(reviewerCmd)
	rootCmd.AddCommand(collaboratorCmd)
}
