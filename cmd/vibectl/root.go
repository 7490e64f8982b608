package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWithContext(&commandContext{})
}

func newRootCommandWithContext(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vibectl",
		Short:         "Render vibe videos and manage scratch space",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.scratchRoot, "scratch-root", "", "Scratch root (overrides SCRATCH_ROOT)")
	rootCmd.PersistentFlags().StringVar(&ctx.policyFile, "policy", "", "Render policy YAML (overrides POLICY_FILE)")
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonOutput, "json", false, "Emit JSON output")

	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newWorkspaceCommand(ctx))

	return rootCmd
}
