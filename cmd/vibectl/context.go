package main

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/bobarin/vibecast/internal/config"
	"github.com/bobarin/vibecast/internal/services"
	"github.com/bobarin/vibecast/internal/workspace"
)

type commandContext struct {
	scratchRoot string
	policyFile  string
	jsonOutput  bool

	// runner replaces the ffmpeg/ffprobe executor when set.
	runner services.Runner

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		if root := strings.TrimSpace(c.scratchRoot); root != "" {
			cfg.ScratchRoot = root
		}
		if path := strings.TrimSpace(c.policyFile); path != "" {
			cfg.PolicyFile = path
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) openWorkspace() (*workspace.Manager, *workspace.Gate, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	manager, err := workspace.NewManager(cfg.ScratchRoot)
	if err != nil {
		return nil, nil, err
	}
	return manager, workspace.NewGate(manager.Root()), nil
}

func (c *commandContext) ffmpeg(cfg *config.Config) *services.FFmpegService {
	if c.runner != nil {
		return services.NewFFmpegServiceWithRunner(cfg.FFmpegPath, cfg.FFprobePath, c.runner)
	}
	return services.NewFFmpegService(cfg.FFmpegPath, cfg.FFprobePath)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
