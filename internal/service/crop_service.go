package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"vistacrop/internal/domain"
	"vistacrop/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Crop Service — CRUD surface for the crop library
// ─────────────────────────────────────────────────────────────

// CropService manages the crop library the composition editor draws
// from. Mutations emit change events so open editors can refresh, and
// report which image was touched so cached pixels can be dropped.
type CropService struct {
	store        *storage.CropStore
	emitter      EventEmitter
	onInvalidate func(imageID string)
}

// NewCropService creates a CropService. onInvalidate is called with the
// affected image id after any mutation; a nil callback is allowed.
func NewCropService(store *storage.CropStore, emitter EventEmitter, onInvalidate func(imageID string)) *CropService {
	if onInvalidate == nil {
		onInvalidate = func(string) {}
	}
	return &CropService{store: store, emitter: emitter, onInvalidate: onInvalidate}
}

// ListCrops returns every crop in the library.
func (s *CropService) ListCrops(ctx context.Context) ([]domain.Crop, error) {
	return s.store.ListCrops(ctx)
}

// GetCrop returns a crop by id.
func (s *CropService) GetCrop(ctx context.Context, id string) (*domain.Crop, error) {
	return s.store.GetCrop(ctx, id)
}

// SaveCrops replaces all crops of one source image.
func (s *CropService) SaveCrops(ctx context.Context, imageID string, crops []domain.Crop) error {
	for i := range crops {
		if crops[i].Width <= 0 || crops[i].Height <= 0 {
			return fmt.Errorf("save crops: crop %d has a degenerate size: %w", i, domain.ErrInvalidInput)
		}
	}
	if err := s.store.SaveCrops(ctx, imageID, crops); err != nil {
		return err
	}
	s.onInvalidate(imageID)
	s.emitter.Emit(ctx, "crops:changed", imageID)
	return nil
}

// UpdateCrop applies a partial update to one crop.
func (s *CropService) UpdateCrop(ctx context.Context, imageID, cropID string, patch domain.CropPatch) (*domain.Crop, error) {
	if patch.Width != nil && *patch.Width <= 0 {
		return nil, fmt.Errorf("update crop: width must be positive: %w", domain.ErrInvalidInput)
	}
	if patch.Height != nil && *patch.Height <= 0 {
		return nil, fmt.Errorf("update crop: height must be positive: %w", domain.ErrInvalidInput)
	}
	crop, err := s.store.UpdateCrop(ctx, imageID, cropID, patch)
	if err != nil {
		return nil, err
	}
	s.onInvalidate(imageID)
	s.emitter.Emit(ctx, "crops:changed", imageID)
	return crop, nil
}

// DeleteCrop removes a crop. Placed items referencing it keep their
// geometry and render as placeholders from then on.
func (s *CropService) DeleteCrop(ctx context.Context, imageID, cropID string) error {
	if err := s.store.DeleteCrop(ctx, imageID, cropID); err != nil {
		return err
	}
	s.onInvalidate(imageID)
	s.emitter.Emit(ctx, "crops:changed", imageID)
	return nil
}

// SaveOriginalImage stores a base64-encoded source image under the
// given image id.
func (s *CropService) SaveOriginalImage(imageID, ext, dataURL string) error {
	data, err := decodeBase64Image(dataURL)
	if err != nil {
		return err
	}
	if err := s.store.StoreOriginal(imageID, ext, data); err != nil {
		return err
	}
	s.onInvalidate(imageID)
	return nil
}

// SavePreviewImage stores a base64-encoded preview bitmap for a crop.
func (s *CropService) SavePreviewImage(cropID, dataURL string) error {
	data, err := decodeBase64Image(dataURL)
	if err != nil {
		return err
	}
	if err := s.store.StorePreview(cropID, data); err != nil {
		return err
	}
	s.emitter.Emit(context.Background(), "crops:changed", cropID)
	return nil
}

// decodeBase64Image strips an optional data-URL prefix and decodes the
// payload.
func decodeBase64Image(dataURL string) ([]byte, error) {
	payload := dataURL
	if idx := strings.Index(dataURL, ","); idx >= 0 && strings.HasPrefix(dataURL, "data:") {
		payload = dataURL[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return data, nil
}
