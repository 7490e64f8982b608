package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bobarin/vibecast/internal/config"
	"github.com/bobarin/vibecast/internal/delivery"
	"github.com/bobarin/vibecast/internal/models"
	"github.com/bobarin/vibecast/internal/services"
	"github.com/bobarin/vibecast/internal/storage"
	"github.com/bobarin/vibecast/internal/worker"
)

type renderOutput struct {
	JobID          string              `json:"jobId"`
	Mode           models.DeliveryMode `json:"mode"`
	VideoURL       string              `json:"videoUrl"`
	ThumbnailURL   string              `json:"thumbnailUrl"`
	VideoPath      string              `json:"videoPath"`
	ThumbnailPath  string              `json:"thumbnailPath"`
	VideoBytes     int64               `json:"videoBytes"`
	ThumbnailBytes int64               `json:"thumbnailBytes"`
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		audioURLs []string
		imageURL  string
		vibe      string
		subtitle  string
		baseURL   string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one video and thumbnail locally",
		Example: `  vibectl render --audio https://cdn.example.com/a.mp3 --audio https://cdn.example.com/b.mp3 \
    --image https://cdn.example.com/bg.jpg --vibe "Ocean Breeze" --subtitle "Lo-Fi Focus"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			policy, err := config.LoadPolicy(cfg.PolicyFile)
			if err != nil {
				return err
			}
			manager, gate, err := ctx.openWorkspace()
			if err != nil {
				return err
			}

			deliverer := delivery.New(storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket))
			pipeline := worker.NewPipeline(manager, gate, ctx.ffmpeg(cfg), services.NewFetcher(), deliverer, worker.Options{
				Policy:         policy,
				FontPath:       cfg.ThumbnailFontPath,
				ReclaimOnEntry: cfg.ReclaimPolicy == config.ReclaimOnEntry,
			})

			if baseURL == "" {
				baseURL = cfg.PublicBaseURL
			}
			if baseURL == "" {
				baseURL = "http://localhost:" + cfg.APIPort
			}

			result, err := pipeline.Run(cmd.Context(), models.GenerateRequest{
				AudioURLs: audioURLs,
				ImageURL:  imageURL,
				Vibe:      vibe,
				Subtitle:  subtitle,
			}, baseURL)
			if err != nil {
				return fmt.Errorf("%s: %w", services.Label(err), err)
			}

			out := renderOutput{
				JobID:          result.JobID.String(),
				Mode:           result.Delivery.Mode,
				VideoURL:       result.Delivery.VideoURL,
				ThumbnailURL:   result.Delivery.ThumbnailURL,
				VideoPath:      result.Video.Path,
				ThumbnailPath:  result.Thumbnail.Path,
				VideoBytes:     result.Video.Size,
				ThumbnailBytes: result.Thumbnail.Size,
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Job:       %s\n", out.JobID)
			fmt.Fprintf(w, "Video:     %s (%s)\n", out.VideoPath, humanize.IBytes(uint64(out.VideoBytes)))
			fmt.Fprintf(w, "Thumbnail: %s (%s)\n", out.ThumbnailPath, humanize.IBytes(uint64(out.ThumbnailBytes)))
			fmt.Fprintf(w, "Delivery:  %s\n", out.Mode)
			fmt.Fprintf(w, "  %s\n  %s\n", out.VideoURL, out.ThumbnailURL)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&audioURLs, "audio", nil, "Audio URL (repeat for each track, in order)")
	cmd.Flags().StringVar(&imageURL, "image", "", "Background image URL")
	cmd.Flags().StringVar(&vibe, "vibe", "", "Headline caption")
	cmd.Flags().StringVar(&subtitle, "subtitle", "", "Secondary caption")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for local download links")
	_ = cmd.MarkFlagRequired("audio")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}
