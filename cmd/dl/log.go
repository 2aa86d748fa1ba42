package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [id|slug]",
	Short: "Show a branch's transition history, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBranch(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		limit, _ := cmd.Flags().GetInt("limit")
		transitions, err := engine.GetTransitions(rootCtx, b.ID, limit)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(transitions)
			return
		}
		for _, tr := range transitions {
			line := fmt.Sprintf("%s  %-18s %s -> %s  by %s",
				tr.CreatedAt.Format(time.RFC3339), tr.Event, tr.FromState, tr.ToState, tr.ActorID)
			if tr.ActorType == "system" {
				line += " (system)"
			}
			fmt.Println(line)
			if tr.Reason != "" {
				fmt.Printf("    %s\n", tr.Reason)
			}
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write stored project settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a stored setting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		value, err := store.GetConfig(rootCtx, args[0])
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{args[0]: value})
			return
		}
		fmt.Println(value)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a stored setting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := store.SetConfig(rootCtx, args[0], args[1]); err != nil {
			FatalError("%v", err)
		}
		if !jsonOutput {
			fmt.Printf("%s = %s\n", args[0], args[1])
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			outputJSON(map[string]string{"version": Version, "build": Build})
			return
		}
		fmt.Printf("dl version %s (%s)\n", Version, Build)
	},
}

func init() {
	logCmd.Flags().Int("limit", 0, "Maximum entries to show")
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
