package app

import (
	"context"

	"vistacrop/internal/domain"
)

// ============================================================
// Crop library
// ============================================================

func (a *App) ListCrops(ctx context.Context) ([]domain.Crop, error) {
	return a.cropLibrary.ListCrops(ctx)
}

func (a *App) GetCrop(ctx context.Context, id string) (*domain.Crop, error) {
	return a.cropLibrary.GetCrop(ctx, id)
}

// SaveCrops replaces every crop of a source image.
func (a *App) SaveCrops(ctx context.Context, imageID string, crops []domain.Crop) error {
	return a.cropLibrary.SaveCrops(ctx, imageID, crops)
}

func (a *App) UpdateCrop(ctx context.Context, imageID, cropID string, patch domain.CropPatch) (*domain.Crop, error) {
	return a.cropLibrary.UpdateCrop(ctx, imageID, cropID, patch)
}

func (a *App) DeleteCrop(ctx context.Context, imageID, cropID string) error {
	return a.cropLibrary.DeleteCrop(ctx, imageID, cropID)
}

// UploadOriginalImage stores a base64-encoded source image.
func (a *App) UploadOriginalImage(imageID, ext, dataURL string) error {
	return a.cropLibrary.SaveOriginalImage(imageID, ext, dataURL)
}

// UploadPreviewImage stores a base64-encoded crop preview.
func (a *App) UploadPreviewImage(cropID, dataURL string) error {
	return a.cropLibrary.SavePreviewImage(cropID, dataURL)
}
