package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/approval"
	"github.com/draftline/draftline/internal/types"
)

var submitCmd = &cobra.Command{
	Use:   "submit [id|slug]",
	Short: "Submit a draft branch for review",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		updated, err := engine.Submit(rootCtx, b.ID, currentActor())
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(updated)
			return
		}
		fmt.Printf("Branch %s submitted for review (%d approvals required)\n",
			updated.ID, updated.EffectiveRequiredApprovals())
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Record review decisions",
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve [id|slug]",
	Short: "Approve a branch under review",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")
		recordDecision(args[0], types.DecisionApproved, reason)
	},
}

var reviewRequestChangesCmd = &cobra.Command{
	Use:   "request-changes [id|slug]",
	Short: "Request changes, returning the branch to draft",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")
		recordDecision(args[0], types.DecisionChangesRequested, reason)
	},
}

func recordDecision(arg string, kind types.DecisionKind, reason string) {
	b, err := resolveBranch(arg)
	if err != nil {
		FatalError("%v", err)
	}
	actor := currentActor()
	if !b.IsReviewer(actor.UserID) && !actor.IsAdmin() {
		FatalError("user %s is not a reviewer on branch %s", actor.UserID, b.ID)
	}

	decision, err := reviews.Complete(b.ID, actor.UserID, kind, reason)
	if err != nil {
		FatalError("%v", err)
	}
	outcome, err := engine.RecordReviewDecision(rootCtx, b.ID, decision)
	if err != nil {
		FatalError("%v", err)
	}

	if jsonOutput {
		outputJSON(outcome)
		return
	}
	switch outcome.Action {
	case approval.ActionApprove:
		fmt.Printf("Branch %s approved (%d/%d approvals)\n",
			b.ID, outcome.ApprovalCount, outcome.RequiredApprovals)
	case approval.ActionReturnToDraft:
		fmt.Printf("Branch %s returned to draft\n", b.ID)
	default:
		fmt.Printf("Recorded approval for %s (%d/%d)\n",
			b.ID, outcome.ApprovalCount, outcome.RequiredApprovals)
	}
}

var publishCmd = &cobra.Command{
	Use:   "publish [id|slug]",
	Short: "Publish an approved branch",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		updated, err := engine.Publish(rootCtx, b.ID, currentActor())
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(updated)
			return
		}
		fmt.Printf("Branch %s published\n", updated.ID)
	},
}

func init() {
	reviewApproveCmd.Flags().String("reason", "", "Review comment")
	reviewRequestChangesCmd.Flags().String("reason", "", "What needs to change")
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRequestChangesCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(publishCmd)
}
