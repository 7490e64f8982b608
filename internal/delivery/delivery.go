package delivery

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobarin/vibecast/internal/models"
	"github.com/bobarin/vibecast/internal/services"
	"github.com/bobarin/vibecast/internal/storage"
)

// ObjectStore is the durable store outputs are published to.
type ObjectStore interface {
	Configured() bool
	Put(ctx context.Context, localPath, key, contentType string) (string, error)
}

// Deliverer publishes a job's outputs either to the object store or, when
// none is configured, as links to this server's download endpoints.
type Deliverer struct {
	store ObjectStore
	now   func() time.Time
}

func New(store ObjectStore) *Deliverer {
	return &Deliverer{store: store, now: time.Now}
}

// Durable reports whether outputs go to the object store.
func (d *Deliverer) Durable() bool {
	return d.store != nil && d.store.Configured()
}

// Deliver returns a DeliveryResult in exactly one mode.
func (d *Deliverer) Deliver(ctx context.Context, jobID uuid.UUID, video, thumbnail models.MediaAsset, baseURL string) (models.DeliveryResult, error) {
	if !d.Durable() {
		return LocalResult(jobID, baseURL), nil
	}

	at := d.now()
	result := models.DeliveryResult{Mode: models.DeliveryModeDurable}

	// Both uploads run concurrently; the first failure cancels the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		url, err := d.store.Put(gctx, video.Path, storage.RenderKey(jobID, at, "video.mp4"), "video/mp4")
		if err != nil {
			return fmt.Errorf("video upload: %w", err)
		}
		result.VideoURL = url
		return nil
	})
	g.Go(func() error {
		url, err := d.store.Put(gctx, thumbnail.Path, storage.RenderKey(jobID, at, "thumbnail.jpg"), "image/jpeg")
		if err != nil {
			return fmt.Errorf("thumbnail upload: %w", err)
		}
		result.ThumbnailURL = url
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.DeliveryResult{}, services.Wrap(services.ErrDelivery, "deliver", "upload", "failed to publish outputs", err)
	}

	log.Printf("[Delivery] job %s published to object store", jobID)
	return result, nil
}

// LocalResult points at this server's download endpoints.
func LocalResult(jobID uuid.UUID, baseURL string) models.DeliveryResult {
	base := strings.TrimRight(baseURL, "/")
	return models.DeliveryResult{
		Mode:         models.DeliveryModeLocal,
		VideoURL:     fmt.Sprintf("%s/download/video/%s", base, jobID),
		ThumbnailURL: fmt.Sprintf("%s/download/thumbnail/%s", base, jobID),
	}
}
