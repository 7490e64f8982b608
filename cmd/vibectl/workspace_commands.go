package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bobarin/vibecast/internal/workspace"
)

func newWorkspaceCommand(ctx *commandContext) *cobra.Command {
	workspaceCmd := &cobra.Command{
		Use:   "workspace",
		Short: "Inspect and reclaim job workspaces",
	}

	workspaceCmd.AddCommand(newWorkspaceInfoCommand(ctx))
	workspaceCmd.AddCommand(newWorkspaceReclaimCommand(ctx))

	return workspaceCmd
}

func newWorkspaceInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show scratch root usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := ctx.openWorkspace()
			if err != nil {
				return err
			}

			info, err := manager.Info()
			if err != nil {
				return fmt.Errorf("read scratch root: %w", err)
			}

			if ctx.jsonOutput {
				return writeJSON(cmd, info)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Scratch root: %s\n", info.Root)
			fmt.Fprintf(w, "Workspaces:   %d\n", info.Workspaces)
			fmt.Fprintf(w, "Total size:   %s\n", humanize.IBytes(uint64(info.TotalBytes)))
			return nil
		},
	}
}

func newWorkspaceReclaimCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Remove job workspaces",
		Long:  "Remove job workspaces. Waits for any running job to finish first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, gate, err := ctx.openWorkspace()
			if err != nil {
				return err
			}

			release, err := gate.Acquire(cmd.Context())
			if err != nil {
				return fmt.Errorf("wait for running job: %w", err)
			}
			defer release()

			var result workspace.ReclaimResult
			if olderThan > 0 {
				result, err = manager.ReclaimOlderThan(olderThan)
			} else {
				result, err = manager.ReclaimAll()
			}
			if err != nil {
				return fmt.Errorf("reclaim workspaces: %w", err)
			}

			if ctx.jsonOutput {
				return writeJSON(cmd, map[string]any{
					"removed":     result.Removed,
					"freed_bytes": result.FreedBytes,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d workspace(s), freed %s\n",
				result.Removed, humanize.IBytes(uint64(result.FreedBytes)))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only remove workspaces older than this (0 removes all)")
	return cmd
}
