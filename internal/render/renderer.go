// Package render rasterizes composition pages off-screen. The pipeline
// reproduces the interactive view at any output scale from a read-only
// document snapshot, independent of live editor state.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/gogpu/gg"

	"vistacrop/internal/domain"
	"vistacrop/internal/geometry"
	"vistacrop/internal/layout"
)

// placeholderFill is painted inside items whose crop no longer exists.
const placeholderFill = "#e8e8e8"

// Renderer turns pages into bitmaps. It is safe for concurrent use;
// every render works on the state passed in, the only shared part is
// the original-image cache.
type Renderer struct {
	crops     domain.CropSource
	originals *originalCache
	log       *slog.Logger
}

// New creates a Renderer over a crop source. A nil logger disables
// logging.
func New(crops domain.CropSource, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Renderer{
		crops:     crops,
		originals: newOriginalCache(crops.OriginalImage),
		log:       log,
	}
}

// InvalidateOriginal drops a cached source bitmap. Wired to the crop
// store's file watcher.
func (r *Renderer) InvalidateOriginal(imageID string) {
	r.originals.Invalidate(imageID)
}

// RenderPage rasterizes one page at the given scale. The output is
// round(pageWidth*scale) x round(pageHeight*scale) pixels. Missing
// crops degrade to placeholders; a failed original-image fetch falls
// back to the unrotated preview. Neither aborts the render.
func (r *Renderer) RenderPage(ctx context.Context, page domain.Page, mode domain.CompositionMode, scale float64) (image.Image, error) {
	if scale <= 0 || page.PageWidth <= 0 || page.PageHeight <= 0 {
		return nil, fmt.Errorf("render page %s: %w: scale %v, size %vx%v",
			page.ID, domain.ErrInvalidInput, scale, page.PageWidth, page.PageHeight)
	}
	w := int(math.Round(page.PageWidth * scale))
	h := int(math.Round(page.PageHeight * scale))

	dc := gg.NewContext(w, h)
	defer dc.Close()

	bg := page.BackgroundColor
	if bg == "" {
		bg = "#ffffff"
	}
	dc.SetHexColor(bg)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("render page %s: fill background: %w", page.ID, err)
	}

	if mode == domain.ModePanels {
		r.renderPanels(ctx, dc, page, scale)
	} else {
		r.renderFreeform(ctx, dc, page, scale)
	}
	return dc.Image(), nil
}

// renderPanels draws each assigned panel: clip to the panel rect,
// translate to its center, apply zoom, pan offset and the crop's own
// rotation, then cover-fit the preview centered at the origin.
func (r *Renderer) renderPanels(ctx context.Context, dc *gg.Context, page domain.Page, scale float64) {
	rects := layout.PanelRects(layout.Get(page.LayoutID), page.PageWidth, page.PageHeight, page.Margin)
	for i, a := range page.Assignments {
		if i >= len(rects) || a.CropID == nil {
			continue
		}
		crop, img, ok := r.resolveCrop(ctx, *a.CropID)
		if !ok {
			continue
		}
		rect := rects[i]
		px, py := rect.X*scale, rect.Y*scale
		pw, ph := rect.Width*scale, rect.Height*scale
		imgW := float64(img.Bounds().Dx())
		imgH := float64(img.Bounds().Dy())
		if imgW <= 0 || imgH <= 0 {
			continue
		}

		zoom := a.Zoom
		if zoom <= 0 {
			zoom = 1
		}
		cover := math.Max(pw/imgW, ph/imgH)
		dw, dh := imgW*cover, imgH*cover

		dc.Push()
		dc.ClipRect(px, py, pw, ph)
		dc.Translate(px+pw/2, py+ph/2)
		dc.Scale(zoom, zoom)
		dc.Translate(a.OffsetX*scale, a.OffsetY*scale)
		dc.Rotate(degToRad(crop.Rotation))
		dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
			X: -dw / 2, Y: -dh / 2,
			DstWidth: dw, DstHeight: dh,
			Interpolation: gg.InterpBilinear,
		})
		dc.Pop()
	}
}

// renderFreeform draws each placed item clipped to its frame-shape
// polygon. Rotated items re-sample from the original source bitmap so
// the rotation does not double-crop the preview; everything else
// contain-fits the preview inside the box.
func (r *Renderer) renderFreeform(ctx context.Context, dc *gg.Context, page domain.Page, scale float64) {
	for _, item := range page.PlacedItems {
		bx, by := item.X*scale, item.Y*scale
		bw, bh := item.Width*scale, item.Height*scale
		if bw <= 0 || bh <= 0 {
			continue
		}
		pts := geometry.ShapePoints(item.FrameShape, item.CustomPoints, bx, by, bw, bh)

		crop, img, ok := r.resolveCrop(ctx, item.CropID)

		dc.Push()
		polygonPath(dc, pts)
		dc.Clip()
		if !ok {
			// Dangling crop reference: explicit placeholder state.
			dc.SetHexColor(placeholderFill)
			polygonPath(dc, pts)
			if err := dc.Fill(); err != nil {
				r.log.Warn("placeholder fill failed", "item", item.ID, "err", err)
			}
			dc.Pop()
			r.strokeBorder(dc, item, pts, scale)
			continue
		}

		rot := crop.Rotation
		if item.Rotation != nil {
			rot = *item.Rotation
		}

		drawn := false
		if rot != 0 && crop.ImageID != "" {
			drawn = r.drawRotatedFromOriginal(ctx, dc, item, *crop, rot, scale)
		}
		if !drawn {
			containFit(dc, img, bx, by, bw, bh)
		}
		dc.Pop()

		r.strokeBorder(dc, item, pts, scale)
	}
}

// drawRotatedFromOriginal maps the crop's source sub-rectangle into the
// item box with independent X/Y scale factors, rotates by the negative
// effective rotation about the item center, and draws the full original
// bitmap. Returns false (preview fallback) when the original cannot be
// fetched.
func (r *Renderer) drawRotatedFromOriginal(ctx context.Context, dc *gg.Context, item domain.PlacedItem, crop domain.Crop, rot, scale float64) bool {
	if crop.Width <= 0 || crop.Height <= 0 {
		return false
	}
	orig, err := r.originals.Get(ctx, crop.ImageID)
	if err != nil {
		r.log.Warn("original image fetch failed, using preview",
			"item", item.ID, "image", crop.ImageID, "err", err)
		return false
	}
	filtered := ApplyFilter(orig, crop.Filter)

	scaleX := item.Width * scale / crop.Width
	scaleY := item.Height * scale / crop.Height
	cx := (item.X + item.Width/2) * scale
	cy := (item.Y + item.Height/2) * scale

	origW := float64(filtered.Bounds().Dx())
	origH := float64(filtered.Bounds().Dy())

	dc.Push()
	dc.RotateAbout(-degToRad(rot), cx, cy)
	dc.DrawImageEx(gg.ImageBufFromImage(filtered), gg.DrawImageOptions{
		X:         cx - (crop.X+crop.Width/2)*scaleX,
		Y:         cy - (crop.Y+crop.Height/2)*scaleY,
		DstWidth:  origW * scaleX,
		DstHeight: origH * scaleY,
		Interpolation: gg.InterpBilinear,
	})
	dc.Pop()
	return true
}

// resolveCrop looks up a crop and its filtered preview. A missing crop
// or preview logs and reports !ok; the caller renders a placeholder.
func (r *Renderer) resolveCrop(ctx context.Context, cropID string) (*domain.Crop, image.Image, bool) {
	crop, err := r.crops.GetCrop(ctx, cropID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.Warn("crop lookup failed", "crop", cropID, "err", err)
		}
		return nil, nil, false
	}
	img, err := r.crops.PreviewImage(ctx, cropID)
	if err != nil {
		r.log.Warn("crop preview unavailable", "crop", cropID, "err", err)
		return nil, nil, false
	}
	return crop, ApplyFilter(img, crop.Filter), true
}

// containFit draws an image inside a box preserving aspect ratio,
// centered, without cropping.
func containFit(dc *gg.Context, img image.Image, x, y, w, h float64) {
	imgW := float64(img.Bounds().Dx())
	imgH := float64(img.Bounds().Dy())
	if imgW <= 0 || imgH <= 0 {
		return
	}
	s := math.Min(w/imgW, h/imgH)
	dw, dh := imgW*s, imgH*s
	dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		X:         x + (w-dw)/2,
		Y:         y + (h-dh)/2,
		DstWidth:  dw,
		DstHeight: dh,
		Interpolation: gg.InterpBilinear,
	})
}

// strokeBorder strokes the item's frame. The manga style draws the
// outer path plus an inner inset path at 60% weight; dashed uses a
// 3w/2w pattern.
func (r *Renderer) strokeBorder(dc *gg.Context, item domain.PlacedItem, pts []domain.Point, scale float64) {
	if item.BorderStyle == domain.BorderNone || item.BorderWidth <= 0 {
		return
	}
	bw := item.BorderWidth
	color := item.BorderColor
	if color == "" {
		color = "#000000"
	}

	stroke := func(path []domain.Point, width float64, dash ...float64) {
		dc.SetHexColor(color)
		dc.SetLineWidth(width)
		if len(dash) > 0 {
			dc.SetDash(dash...)
		} else {
			dc.ClearDash()
		}
		polygonPath(dc, path)
		if err := dc.Stroke(); err != nil {
			r.log.Warn("border stroke failed", "item", item.ID, "err", err)
		}
	}

	switch item.BorderStyle {
	case domain.BorderManga:
		stroke(pts, bw*scale)
		frac := math.Max(bw, 4) / math.Min(item.Width, item.Height)
		inner := geometry.Inset(item.FrameShape, item.CustomPoints,
			item.X*scale, item.Y*scale, item.Width*scale, item.Height*scale, frac)
		innerW := 0.6 * bw
		if innerW < 1 {
			innerW = 1
		}
		stroke(inner, innerW*scale)
	case domain.BorderDashed:
		stroke(pts, bw*scale, 3*bw*scale, 2*bw*scale)
	default: // solid
		stroke(pts, bw*scale)
	}
}

func polygonPath(dc *gg.Context, pts []domain.Point) {
	if len(pts) == 0 {
		return
	}
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.ClosePath()
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
