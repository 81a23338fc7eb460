package render

import (
	"context"
	"fmt"
	"image"
	"math"

	"vistacrop/internal/domain"
)

// Thumbnail renders a page scaled to fit maxW x maxH without ever
// upscaling. Returns (nil, nil) when the page has no content — there is
// nothing meaningful to preview.
func (r *Renderer) Thumbnail(ctx context.Context, page domain.Page, mode domain.CompositionMode, maxW, maxH float64) (image.Image, error) {
	if maxW <= 0 || maxH <= 0 {
		return nil, fmt.Errorf("thumbnail: %w: max size %vx%v", domain.ErrInvalidInput, maxW, maxH)
	}
	if !pageHasContent(page, mode) {
		return nil, nil
	}
	scale := math.Min(math.Min(maxW/page.PageWidth, maxH/page.PageHeight), 1)
	return r.RenderPage(ctx, page, mode, scale)
}

// ExportDocument renders every page in order at the given scale,
// invoking fn per page. Rendering stops at the first callback error or
// context cancellation; per-item degradation inside a page never aborts
// the export.
func (r *Renderer) ExportDocument(ctx context.Context, doc domain.Document, scale float64, fn func(pageIndex int, page domain.Page, img image.Image) error) error {
	for i, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("export %s: %w", doc.ID, err)
		}
		img, err := r.RenderPage(ctx, page, doc.Mode, scale)
		if err != nil {
			return fmt.Errorf("export %s page %d: %w", doc.ID, i, err)
		}
		if err := fn(i, page, img); err != nil {
			return fmt.Errorf("export %s page %d: %w", doc.ID, i, err)
		}
	}
	return nil
}

// pageHasContent reports whether a page would render anything beyond
// its background.
func pageHasContent(page domain.Page, mode domain.CompositionMode) bool {
	if mode == domain.ModePanels {
		for _, a := range page.Assignments {
			if a.CropID != nil {
				return true
			}
		}
		return false
	}
	return len(page.PlacedItems) > 0
}
