package compose

import (
	"fmt"

	"vistacrop/internal/domain"
)

// ItemPatch is a partial update for a placed item. Nil fields are left
// unchanged. The same patch type serves both the committed and the
// silent update path, so the history contract is decided by the entry
// point, never by a flag inside the payload.
type ItemPatch struct {
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`

	// Rotation sets the item-level override (degrees). ClearRotation
	// removes the override so the crop's own rotation applies again.
	Rotation      *float64 `json:"rotation,omitempty"`
	ClearRotation bool     `json:"clearRotation,omitempty"`

	FrameShape *domain.FrameShape `json:"frameShape,omitempty"`

	// CustomPoints replaces the reshaped polygon (item-local unit
	// space, at least 3 points). ClearCustomPoints reverts to the
	// generated frame shape.
	CustomPoints      []domain.Point `json:"customPoints,omitempty"`
	ClearCustomPoints bool           `json:"clearCustomPoints,omitempty"`

	BorderColor *string             `json:"borderColor,omitempty"`
	BorderWidth *float64            `json:"borderWidth,omitempty"`
	BorderStyle *domain.BorderStyle `json:"borderStyle,omitempty"`
}

func (p ItemPatch) validate() error {
	if p.Width != nil && *p.Width <= 0 {
		return fmt.Errorf("item width %v: %w", *p.Width, domain.ErrInvalidInput)
	}
	if p.Height != nil && *p.Height <= 0 {
		return fmt.Errorf("item height %v: %w", *p.Height, domain.ErrInvalidInput)
	}
	if p.BorderWidth != nil && *p.BorderWidth < 0 {
		return fmt.Errorf("border width %v: %w", *p.BorderWidth, domain.ErrInvalidInput)
	}
	if p.CustomPoints != nil && len(p.CustomPoints) < 3 {
		return fmt.Errorf("custom points: %w: need at least 3, got %d",
			domain.ErrInvalidInput, len(p.CustomPoints))
	}
	return nil
}

func (p ItemPatch) apply(it *domain.PlacedItem) {
	if p.X != nil {
		it.X = *p.X
	}
	if p.Y != nil {
		it.Y = *p.Y
	}
	if p.Width != nil {
		it.Width = *p.Width
	}
	if p.Height != nil {
		it.Height = *p.Height
	}
	if p.ClearRotation {
		it.Rotation = nil
	} else if p.Rotation != nil {
		r := *p.Rotation
		it.Rotation = &r
	}
	if p.FrameShape != nil {
		it.FrameShape = *p.FrameShape
	}
	if p.ClearCustomPoints {
		it.CustomPoints = nil
	} else if p.CustomPoints != nil {
		it.CustomPoints = append([]domain.Point(nil), p.CustomPoints...)
	}
	if p.BorderColor != nil {
		it.BorderColor = *p.BorderColor
	}
	if p.BorderWidth != nil {
		it.BorderWidth = *p.BorderWidth
	}
	if p.BorderStyle != nil {
		it.BorderStyle = *p.BorderStyle
	}
}
