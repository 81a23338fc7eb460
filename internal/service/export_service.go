package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"time"

	"vistacrop/internal/domain"
	"vistacrop/internal/render"
	"vistacrop/internal/storage"
)

// thumbMaxSize bounds composition thumbnails on their longest edge.
const thumbMaxSize = 320

// pageDelay is the pause between page files during a multi-page
// export, so download-style consumers see the files arrive in order.
const pageDelay = 100 * time.Millisecond

// ─────────────────────────────────────────────────────────────
// Export Service — off-screen rendering to files
// ─────────────────────────────────────────────────────────────

// ExportService renders compositions to per-page image files and
// composition thumbnails. At most one export per composition runs at a
// time; a second request while one is in flight is rejected.
type ExportService struct {
	comps    *storage.CompositionStore
	exports  *storage.ExportStore
	renderer *render.Renderer
	emitter  EventEmitter
	log      *slog.Logger
	guard    runningJobsGuard
}

// NewExportService creates an ExportService.
func NewExportService(comps *storage.CompositionStore, exports *storage.ExportStore, renderer *render.Renderer, emitter EventEmitter, log *slog.Logger) *ExportService {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &ExportService{
		comps:    comps,
		exports:  exports,
		renderer: renderer,
		emitter:  emitter,
		log:      log,
	}
}

// ExportComposition renders every page of a document at the given
// scale and writes one file per page. Returns the export records in
// page order.
func (s *ExportService) ExportComposition(ctx context.Context, doc *domain.Document, format string, scale float64) ([]storage.ExportRecord, error) {
	if format != "png" && format != "jpeg" {
		return nil, fmt.Errorf("export: format %q: %w", format, domain.ErrInvalidInput)
	}
	if scale <= 0 {
		scale = 1
	}
	if !s.guard.TryLock(doc.ID) {
		return nil, fmt.Errorf("export already running for composition %s", doc.ID)
	}
	defer s.guard.Unlock(doc.ID)

	if err := s.exports.ClearExports(doc.ID); err != nil {
		return nil, err
	}

	start := time.Now()
	var records []storage.ExportRecord
	err := s.renderer.ExportDocument(ctx, *doc, scale, func(pageIndex int, page domain.Page, img image.Image) error {
		if pageIndex > 0 {
			select {
			case <-time.After(pageDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		data, err := encodeImage(img, format)
		if err != nil {
			return fmt.Errorf("encode page %d: %w", pageIndex, err)
		}
		rec, err := s.exports.SaveExport(doc.ID, pageIndex, format, data)
		if err != nil {
			return err
		}
		records = append(records, *rec)
		s.emitter.Emit(ctx, "export:page", map[string]any{
			"compositionId": doc.ID,
			"pageIndex":     pageIndex,
			"totalPages":    len(doc.Pages),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export composition %s: %w", doc.ID, err)
	}

	s.log.Info("composition exported",
		"composition", doc.ID,
		"pages", len(records),
		"format", format,
		"duration", time.Since(start))
	s.emitter.Emit(ctx, "export:done", doc.ID)
	return records, nil
}

// ListExports returns the export records for a composition.
func (s *ExportService) ListExports(compositionID string) ([]storage.ExportRecord, error) {
	return s.exports.ListExports(compositionID)
}

// GenerateThumbnail renders the first page of a document into a small
// preview file and records its path on the composition row. Empty
// documents produce no thumbnail.
func (s *ExportService) GenerateThumbnail(ctx context.Context, doc *domain.Document) (string, error) {
	if len(doc.Pages) == 0 {
		return "", nil
	}
	img, err := s.renderer.Thumbnail(ctx, doc.Pages[0], doc.Mode, thumbMaxSize, thumbMaxSize)
	if err != nil {
		return "", fmt.Errorf("thumbnail for %s: %w", doc.ID, err)
	}
	if img == nil {
		return "", nil
	}
	data, err := encodeImage(img, "jpeg")
	if err != nil {
		return "", fmt.Errorf("thumbnail for %s: %w", doc.ID, err)
	}
	path, err := s.exports.SaveThumb(doc.ID, data)
	if err != nil {
		return "", err
	}
	if err := s.comps.SetThumbPath(doc.ID, path); err != nil {
		return "", err
	}
	return path, nil
}

// WaitAll blocks until every in-flight export finishes or ctx is
// cancelled. Called on shutdown.
func (s *ExportService) WaitAll(ctx context.Context) {
	s.guard.WaitAll(ctx)
}

func encodeImage(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, err
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
