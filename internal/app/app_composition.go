package app

import (
	"vistacrop/internal/compose"
	"vistacrop/internal/domain"
	"vistacrop/internal/layout"
)

// ============================================================
// Compositions
// ============================================================

func (a *App) ListCompositions() ([]domain.CompositionMeta, error) {
	return a.compositions.ListCompositions()
}

func (a *App) CreateComposition(name string, mode, presetID string) (*domain.Document, error) {
	return a.compositions.CreateComposition(name, domain.CompositionMode(mode), presetID)
}

func (a *App) GetComposition(id string) (*domain.Document, error) {
	return a.compositions.GetComposition(id)
}

func (a *App) DeleteComposition(id string) error {
	return a.compositions.DeleteComposition(id)
}

// OpenComposition loads a composition into the editing session and
// returns its current state.
func (a *App) OpenComposition(id string) (*domain.Document, error) {
	editor, err := a.compositions.Open(id)
	if err != nil {
		return nil, err
	}
	doc := editor.Snapshot()
	return &doc, nil
}

// SaveComposition flushes the open session to the store immediately.
func (a *App) SaveComposition() error {
	a.compositions.Flush()
	return nil
}

// EditorState is the view of the open session the client renders from.
type EditorState struct {
	Document  domain.Document `json:"document"`
	PageIndex int             `json:"pageIndex"`
	CanUndo   bool            `json:"canUndo"`
	CanRedo   bool            `json:"canRedo"`
	Dirty     bool            `json:"dirty"`
}

// GetEditorState returns the open document plus session flags.
func (a *App) GetEditorState() (*EditorState, error) {
	editor, err := a.compositions.Editor()
	if err != nil {
		return nil, err
	}
	return &EditorState{
		Document:  editor.Snapshot(),
		PageIndex: editor.CurrentPageIndex(),
		CanUndo:   editor.CanUndo(),
		CanRedo:   editor.CanRedo(),
		Dirty:     editor.Dirty(),
	}, nil
}

// SetCompositionMode switches the open composition between panel and
// freeform editing.
func (a *App) SetCompositionMode(mode string) error {
	editor, err := a.compositions.Editor()
	if err != nil {
		return err
	}
	return editor.SetMode(domain.CompositionMode(mode))
}

// ============================================================
// Pages
// ============================================================

func (a *App) AddPage() (string, error) {
	editor, err := a.compositions.Editor()
	if err != nil {
		return "", err
	}
	return editor.AddPage(), nil
}

func (a *App) DeletePage(index int) error {
	editor, err := a.compositions.Editor()
	if err != nil {
		return err
	}
	return editor.DeletePage(index)
}

func (a *App) DuplicatePage(index int) (string, error) {
	editor, err := a.compositions.Editor()
	if err != nil {
		return "", err
	}
	return editor.DuplicatePage(index)
}

func (a *App) SelectPage(index int) error {
	editor, err := a.compositions.Editor()
	if err != nil {
		return err
	}
	return editor.SelectPage(index)
}

// ============================================================
// Presets
// ============================================================

func (a *App) ListLayouts() []layout.Layout {
	return layout.All()
}

func (a *App) ListPagePresets() []layout.PagePreset {
	return layout.AllPagePresets()
}

// editor is a small helper for the item/panel operation files.
func (a *App) editor() (*compose.Editor, error) {
	return a.compositions.Editor()
}
