package app

import (
	"context"
	"fmt"

	"vistacrop/internal/compose"
	"vistacrop/internal/domain"
)

// ============================================================
// Freeform items
// ============================================================

// DropCrop places a crop on the current freeform page at the given
// drop point and returns the new item id.
func (a *App) DropCrop(ctx context.Context, cropID string, x, y float64) (string, error) {
	editor, err := a.editor()
	if err != nil {
		return "", err
	}
	crop, err := a.crops.GetCrop(ctx, cropID)
	if err != nil {
		return "", err
	}
	return editor.DropCropToFreeform(*crop, x, y)
}

// AddCrops lays several crops out in a grid on the current freeform
// page. Returns the new item ids in input order.
func (a *App) AddCrops(ctx context.Context, cropIDs []string) ([]string, error) {
	editor, err := a.editor()
	if err != nil {
		return nil, err
	}
	crops := make([]domain.Crop, 0, len(cropIDs))
	for _, id := range cropIDs {
		crop, err := a.crops.GetCrop(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("add crops: %w", err)
		}
		crops = append(crops, *crop)
	}
	return editor.AddMultipleCrops(crops)
}

// UpdateItem applies a patch as a committed mutation (undoable).
func (a *App) UpdateItem(id string, patch compose.ItemPatch) error {
	editor, err := a.editor()
	if err != nil {
		return err
	}
	return editor.UpdateItem(id, patch)
}

// UpdateItemLive applies a patch silently, for in-flight gestures like
// dragging or resizing. Not recorded in history.
func (a *App) UpdateItemLive(id string, patch compose.ItemPatch) error {
	editor, err := a.editor()
	if err != nil {
		return err
	}
	return editor.UpdateItemSilent(id, patch)
}

// DragEnd records the state reached by a finished gesture as an undo
// checkpoint.
func (a *App) DragEnd() error {
	editor, err := a.editor()
	if err != nil {
		return err
	}
	editor.DragEnd()
	return nil
}

func (a *App) DeleteItem(id string) error {
	editor, err := a.editor()
	if err != nil {
		return err
	}
	return editor.DeleteItem(id)
}

func (a *App) ClearItems() error {
	editor, err := a.editor()
	if err != nil {
		return err
	}
	return editor.ClearItems()
}

func (a *App) NudgeItem(id string, dx, dy float64) error {
	editor, err := a.editor()
	if err != nil {
		return err
	}
	return editor.NudgeItem(id, dx, dy)
}

// ============================================================
// History
// ============================================================

func (a *App) Undo() (bool, error) {
	editor, err := a.editor()
	if err != nil {
		return false, err
	}
	return editor.Undo(), nil
}

func (a *App) Redo() (bool, error) {
	editor, err := a.editor()
	if err != nil {
		return false, err
	}
	return editor.Redo(), nil
}

// ============================================================
// Panels
// ============================================================

func (a *App) SetLayout(layoutID string) error {
	editor, err := a.editor()
	if err != nil {
		return err
	}
	return editor.SetLayout(layoutID)
}

func (a *App) DropCropToPanel(panelIndex int, cropID string) error {
	editor, err := a.editor()
	if err != nil {
		return err
	}
	return editor.DropCropToPanel(panelIndex, cropID)
}

func (a *App) ClearPanel(panelIndex int) error {
	editor, err := a.editor()
	if err != nil {
		return err
	}
	return editor.ClearPanel(panelIndex)
}

func (a *App) SetPanelZoom(panelIndex int, zoom float64) error {
	editor, err := a.editor()
	if err != nil {
		return err
	}
	return editor.SetPanelZoom(panelIndex, zoom)
}

func (a *App) SetPanelOffset(panelIndex int, offsetX, offsetY float64) error {
	editor, err := a.editor()
	if err != nil {
		return err
	}
	return editor.SetPanelOffset(panelIndex, offsetX, offsetY)
}
