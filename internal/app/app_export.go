package app

import (
	"context"
	"fmt"
	"image"

	"vistacrop/internal/domain"
	"vistacrop/internal/storage"
)

// ============================================================
// Rendering and export
// ============================================================

// RenderCurrentPage rasterizes the open session's current page at the
// given scale, for live preview.
func (a *App) RenderCurrentPage(ctx context.Context, scale float64) (image.Image, error) {
	editor, err := a.editor()
	if err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = 1
	}
	page, mode := editor.CurrentPageState()
	return a.renderer.RenderPage(ctx, page, mode, scale)
}

// ExportComposition renders every page of a saved composition to files.
// The open session is flushed first so the export matches what the
// user sees.
func (a *App) ExportComposition(ctx context.Context, id, format string, scale float64) ([]storage.ExportRecord, error) {
	if a.compositions.OpenID() == id {
		a.compositions.Flush()
	}
	doc, err := a.comps.GetComposition(id)
	if err != nil {
		return nil, err
	}
	records, err := a.exporter.ExportComposition(ctx, doc, format, scale)
	if err != nil {
		return nil, err
	}
	// Refresh the listing thumbnail from the exported state.
	if _, err := a.exporter.GenerateThumbnail(ctx, doc); err != nil {
		a.log.Warn("thumbnail refresh failed", "composition", id, "error", err)
	}
	return records, nil
}

func (a *App) ListExports(compositionID string) ([]storage.ExportRecord, error) {
	return a.exporter.ListExports(compositionID)
}

// GenerateThumbnail renders a small first-page preview for a saved
// composition and returns the file path, or "" for empty documents.
func (a *App) GenerateThumbnail(ctx context.Context, id string) (string, error) {
	doc, err := a.comps.GetComposition(id)
	if err != nil {
		return "", err
	}
	return a.exporter.GenerateThumbnail(ctx, doc)
}

// ThumbnailPath returns the recorded thumbnail path for a composition.
func (a *App) ThumbnailPath(id string) (string, error) {
	list, err := a.comps.ListCompositions()
	if err != nil {
		return "", err
	}
	for _, m := range list {
		if m.ID == id {
			return m.ThumbPath, nil
		}
	}
	return "", fmt.Errorf("composition %s: %w", id, domain.ErrNotFound)
}
