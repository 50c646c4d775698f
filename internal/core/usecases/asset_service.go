package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/placekeeper/internal/core/ports"
	"github.com/samirrijal/placekeeper/internal/pkg/metrics"
)

// AssetService downloads provider photos, watermarks them and stores the result.
type AssetService struct {
	provider  ports.PlacesProvider
	watermark ports.Watermarker
	store     ports.AssetStore
	now       func() time.Time
}

// NewAssetService creates a new AssetService.
func NewAssetService(provider ports.PlacesProvider, watermark ports.Watermarker, store ports.AssetStore) *AssetService {
	return &AssetService{provider: provider, watermark: watermark, store: store, now: time.Now}
}

// Process stores the photo as places/<ownerID>_<epochMillis>.<ext> and returns
// that relative path. Failures are logged and yield "".
func (s *AssetService) Process(ctx context.Context, photoReference, ownerID string) string {
	if photoReference == "" {
		return ""
	}
	path, err := s.process(ctx, photoReference, ownerID)
	if err != nil {
		metrics.AssetsWritten.WithLabelValues("failed").Inc()
		slog.Warn("asset pipeline failed", "owner", ownerID, "error", err)
		return ""
	}
	metrics.AssetsWritten.WithLabelValues("written").Inc()
	return path
}

// Discard removes an asset written by Process. Failures are logged; the
// retention purge collects anything left behind.
func (s *AssetService) Discard(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.store.Remove(ctx, path); err != nil {
		slog.Warn("discard orphaned asset", "path", path, "error", err)
		return
	}
	metrics.AssetsWritten.WithLabelValues("discarded").Inc()
}

func (s *AssetService) process(ctx context.Context, photoReference, ownerID string) (string, error) {
	raw, _, err := s.provider.Photo(ctx, photoReference)
	if err != nil {
		return "", fmt.Errorf("download photo: %w", err)
	}

	marked, ext, err := s.watermark.Apply(raw)
	if err != nil {
		return "", fmt.Errorf("watermark: %w", err)
	}

	name := fmt.Sprintf("places/%s_%d.%s", ownerID, s.now().UnixMilli(), ext)
	path, err := s.store.Write(ctx, name, marked)
	if err != nil {
		return "", fmt.Errorf("store asset: %w", err)
	}
	return path, nil
}
