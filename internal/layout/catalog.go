// Package layout holds the panel-grid and page-size presets, plus the
// ratio-to-pixel conversion used by both the live view and the render
// pipeline.
package layout

import "vistacrop/internal/domain"

// PanelRatio describes one panel slot relative to the page content
// area. All fields are in [0,1].
type PanelRatio struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Layout is a named panel-grid preset.
type Layout struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Panels []PanelRatio `json:"panels"`
}

// Rect is an absolute pixel rectangle on the page.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PagePreset is a named absolute page size in pixels.
type PagePreset struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var layouts = []Layout{
	{ID: "1-full", Name: "Full page", Panels: []PanelRatio{
		{0, 0, 1, 1},
	}},
	{ID: "2-horizontal", Name: "Two rows", Panels: []PanelRatio{
		{0, 0, 1, 0.48},
		{0, 0.52, 1, 0.48},
	}},
	{ID: "2-vertical", Name: "Two columns", Panels: []PanelRatio{
		{0, 0, 0.48, 1},
		{0.52, 0, 0.48, 1},
	}},
	{ID: "3-rows", Name: "Three rows", Panels: []PanelRatio{
		{0, 0, 1, 0.3},
		{0, 0.35, 1, 0.3},
		{0, 0.7, 1, 0.3},
	}},
	{ID: "4-grid", Name: "Four grid", Panels: []PanelRatio{
		{0, 0, 0.48, 0.48},
		{0.52, 0, 0.48, 0.48},
		{0, 0.52, 0.48, 0.48},
		{0.52, 0.52, 0.48, 0.48},
	}},
	{ID: "2x3-grid", Name: "Six grid", Panels: []PanelRatio{
		{0, 0, 0.48, 0.3},
		{0.52, 0, 0.48, 0.3},
		{0, 0.35, 0.48, 0.3},
		{0.52, 0.35, 0.48, 0.3},
		{0, 0.7, 0.48, 0.3},
		{0.52, 0.7, 0.48, 0.3},
	}},
}

var pagePresets = []PagePreset{
	{ID: "a4-portrait", Name: "A4 portrait", Width: 1240, Height: 1754},
	{ID: "a4-landscape", Name: "A4 landscape", Width: 1754, Height: 1240},
	{ID: "square", Name: "Square", Width: 1240, Height: 1240},
	{ID: "webtoon", Name: "Webtoon strip", Width: 800, Height: 1280},
}

// DefaultLayoutID is assigned to new panel-mode pages.
const DefaultLayoutID = "2-horizontal"

// DefaultPagePresetID is assigned to new pages.
const DefaultPagePresetID = "a4-portrait"

// Get returns a layout by id. Unknown ids return the single full-page
// layout so a stale layout reference still renders something sensible.
func Get(id string) Layout {
	for _, l := range layouts {
		if l.ID == id {
			return l
		}
	}
	return layouts[0]
}

// All returns every layout preset, in catalog order.
func All() []Layout {
	out := make([]Layout, len(layouts))
	copy(out, layouts)
	return out
}

// GetPagePreset returns a page preset by id, defaulting to A4 portrait.
func GetPagePreset(id string) PagePreset {
	for _, p := range pagePresets {
		if p.ID == id {
			return p
		}
	}
	return pagePresets[0]
}

// AllPagePresets returns every page-size preset.
func AllPagePresets() []PagePreset {
	out := make([]PagePreset, len(pagePresets))
	copy(out, pagePresets)
	return out
}

// PanelRects converts a layout's ratio panels to absolute pixel
// rectangles. The content area is the page minus the margin on every
// side. Pure function: never mutates the catalog and is idempotent for
// the same inputs.
func PanelRects(l Layout, pageWidth, pageHeight, margin float64) []Rect {
	contentW := pageWidth - 2*margin
	contentH := pageHeight - 2*margin
	out := make([]Rect, len(l.Panels))
	for i, p := range l.Panels {
		out[i] = Rect{
			X:      margin + p.X*contentW,
			Y:      margin + p.Y*contentH,
			Width:  p.Width * contentW,
			Height: p.Height * contentH,
		}
	}
	return out
}

// RemapAssignments adapts an assignment slice to a layout with
// panelCount slots. Existing assignments keep their index where the new
// layout still has one; extra indices are dropped and new indices start
// empty.
func RemapAssignments(old []domain.PanelAssignment, panelCount int) []domain.PanelAssignment {
	out := make([]domain.PanelAssignment, panelCount)
	for i := range out {
		if i < len(old) {
			out[i] = old[i]
		} else {
			out[i] = domain.EmptyAssignment()
		}
	}
	return out
}
