package domain

import (
	"context"
	"image"
	"time"
)

// Crop is a previously extracted rectangular region of a source image.
// The composition core never mutates a Crop; it only references one by id.
type Crop struct {
	ID                  string    `json:"id"`
	X                   float64   `json:"x"`
	Y                   float64   `json:"y"`
	Width               float64   `json:"width"`
	Height              float64   `json:"height"`
	OriginalImageWidth  float64   `json:"originalImageWidth"`
	OriginalImageHeight float64   `json:"originalImageHeight"`
	Rotation            float64   `json:"rotation"` // degrees, applied at source level
	Filter              string    `json:"filter"`   // CSS-equivalent filter list, e.g. "grayscale(1)"
	ImageID             string    `json:"imageId"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// AspectRatio returns width/height, or 1 for degenerate crops.
func (c Crop) AspectRatio() float64 {
	if c.Width <= 0 || c.Height <= 0 {
		return 1
	}
	return c.Width / c.Height
}

// CropSource resolves crop records and their pixels. Lookups return
// ErrNotFound for unknown ids; callers must treat missing crops as an
// empty/placeholder render state, never as a fatal condition.
type CropSource interface {
	GetCrop(ctx context.Context, cropID string) (*Crop, error)
	ListCrops(ctx context.Context) ([]Crop, error)

	// PreviewImage returns the already-cropped preview bitmap for a crop.
	PreviewImage(ctx context.Context, cropID string) (image.Image, error)

	// OriginalImage returns the full-resolution source bitmap a crop was
	// extracted from. Used for rotation-aware re-sampling.
	OriginalImage(ctx context.Context, imageID string) (image.Image, error)
}

// CropStore is the mutable side of the crop repository, consumed by the
// collaborator CRUD surface (not by the composition core itself).
type CropStore interface {
	CropSource
	SaveCrops(ctx context.Context, imageID string, crops []Crop) error
	UpdateCrop(ctx context.Context, imageID, cropID string, patch CropPatch) (*Crop, error)
	DeleteCrop(ctx context.Context, imageID, cropID string) error
}

// CropPatch is a partial update for a crop record. Nil fields are
// left unchanged.
type CropPatch struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	Filter   *string  `json:"filter,omitempty"`
}
