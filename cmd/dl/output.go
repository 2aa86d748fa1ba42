package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/draftline/draftline/internal/types"
)

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// FatalError writes an error message to stderr and exits with code 1.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// FatalErrorWithHint writes an error message with a hint to stderr and exits.
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	os.Exit(1)
}

// WarnError writes a warning message to stderr and returns.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// printBranch renders a branch in the default human format.
func printBranch(b *types.Branch) {
	fmt.Printf("%s  %s [%s] (%s)\n", b.ID, b.Name, b.State, b.Visibility)
	fmt.Printf("  slug:  %s\n", b.Slug)
	fmt.Printf("  owner: %s\n", b.OwnerID)
	fmt.Printf("  base:  %s @ %s\n", b.BaseRef, shortCommit(b.BaseCommit))
	if b.HeadCommit != "" && b.HeadCommit != b.BaseCommit {
		fmt.Printf("  head:  %s\n", shortCommit(b.HeadCommit))
	}
	if b.Description != "" {
		fmt.Printf("  desc:  %s\n", b.Description)
	}
	if len(b.Reviewers) > 0 {
		fmt.Printf("  reviewers: %s\n", strings.Join(b.Reviewers, ", "))
	}
	if len(b.Collaborators) > 0 {
		fmt.Printf("  collaborators: %s\n", strings.Join(b.Collaborators, ", "))
	}
	if len(b.Labels) > 0 {
		fmt.Printf("  labels: %s\n", strings.Join(b.Labels, ", "))
	}
	fmt.Printf("  approvals required: %d\n", b.EffectiveRequiredApprovals())
	fmt.Printf("  created: %s\n", b.CreatedAt.Format(time.RFC3339))
	if b.SubmittedAt != nil {
		fmt.Printf("  submitted: %s\n", b.SubmittedAt.Format(time.RFC3339))
	}
	if b.ApprovedAt != nil {
		fmt.Printf("  approved: %s\n", b.ApprovedAt.Format(time.RFC3339))
	}
	if b.PublishedAt != nil {
		fmt.Printf("  published: %s\n", b.PublishedAt.Format(time.RFC3339))
	}
	if b.ArchivedAt != nil {
		fmt.Printf("  archived: %s\n", b.ArchivedAt.Format(time.RFC3339))
	}
}

// printBranchLine renders a branch as a single list row.
func printBranchLine(b *types.Branch) {
	fmt.Printf("%-10s %-10s %-9s %-20s %s\n", b.ID, b.State, b.Visibility, b.OwnerID, b.Name)
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}

// resolveBranch accepts either a branch ID (br-xxxxxx) or a slug.
func resolveBranch(arg string) (*types.Branch, error) {
	if strings.HasPrefix(arg, "br-") {
		return engine.Get(rootCtx, arg)
	}
	return engine.GetBySlug(rootCtx, arg)
}
