// Package compose implements the in-memory composition model: pages,
// placed items, panel assignments, and the undo/redo discipline over
// them. All mutation of a composition goes through an Editor.
package compose

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"vistacrop/internal/domain"
	"vistacrop/internal/layout"
)

// Layout constants for freeform placement.
const (
	dropSizeRatio = 0.25 // initial item width relative to page width
	dropMaxRatio  = 0.5  // hard cap in either dimension
	gridCellRatio = 0.2  // bulk-add grid cell relative to page width
	gridPadding   = 20.0
)

// Editor owns one composition document and its mutation surface.
//
// Exactly one page is current at a time; only the current page's
// placed items are kept as the fast-access working slice, all other
// pages live fully serialized inside the document. Methods are
// mutex-guarded: mutators never interleave. Committed mutators snapshot
// history and fire the commit hook; silent mutators only touch the
// working state.
type Editor struct {
	mu      sync.Mutex
	doc     domain.Document
	current int
	items   []domain.PlacedItem // working copy of doc.Pages[current].PlacedItems
	history History
	dirty   bool

	// onCommit is invoked after every committed mutation, outside the
	// editor lock. Keep it cheap (restart a debounce timer). Replaces
	// ambient store subscriptions with an explicit observer.
	onCommit func(reason string)
}

// NewDocument builds a one-page document from a page preset.
func NewDocument(name string, mode domain.CompositionMode, presetID string) domain.Document {
	now := time.Now()
	preset := layout.GetPagePreset(presetID)
	page := domain.Page{
		ID:              uuid.New().String(),
		Name:            "Page 1",
		PagePreset:      preset.ID,
		PageWidth:       preset.Width,
		PageHeight:      preset.Height,
		BackgroundColor: "#ffffff",
		Margin:          40,
		LayoutID:        layout.DefaultLayoutID,
		Assignments:     emptyAssignments(layout.DefaultLayoutID),
		PlacedItems:     nil,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return domain.Document{
		ID:        uuid.New().String(),
		Name:      name,
		Mode:      mode,
		Pages:     []domain.Page{page},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewEditor wraps a document. The document must already satisfy the
// one-page minimum.
func NewEditor(doc domain.Document, onCommit func(reason string)) (*Editor, error) {
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("open document: %w: document has no pages", domain.ErrInvalidInput)
	}
	if onCommit == nil {
		onCommit = func(string) {}
	}
	d := doc.Clone()
	return &Editor{
		doc:      d,
		current:  0,
		items:    domain.ClonePlacedItems(d.Pages[0].PlacedItems),
		onCommit: onCommit,
	}, nil
}

// Snapshot returns a deep copy of the document with the working state
// synced in. Safe to hand to the render pipeline or the store while
// mutation continues.
func (e *Editor) Snapshot() domain.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncPageLocked()
	return e.doc.Clone()
}

// Dirty reports whether there are committed changes not yet persisted.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// MarkSaved clears the dirty flag after a successful persist.
func (e *Editor) MarkSaved() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = false
}

// CurrentPageIndex returns the index of the current page.
func (e *Editor) CurrentPageIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// CurrentPage returns a deep copy of the current page including the
// working items.
func (e *Editor) CurrentPage() domain.Page {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncPageLocked()
	return e.doc.Pages[e.current].Clone()
}

// CurrentPageState returns a deep copy of the current page together
// with the document mode as one consistent read. The render path must
// use this instead of pairing Snapshot with CurrentPageIndex: a page
// switch between the two calls could leave the index pointing past the
// snapshot's page slice.
func (e *Editor) CurrentPageState() (domain.Page, domain.CompositionMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncPageLocked()
	return e.doc.Pages[e.current].Clone(), e.doc.Mode
}

// Items returns a deep copy of the working placed items.
func (e *Editor) Items() []domain.PlacedItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.ClonePlacedItems(e.items)
}

func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanUndo()
}

func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanRedo()
}

// SetMode switches the document between panel and freeform mode.
func (e *Editor) SetMode(mode domain.CompositionMode) error {
	if mode != domain.ModePanels && mode != domain.ModeFreeform {
		return fmt.Errorf("set mode %q: %w", mode, domain.ErrInvalidInput)
	}
	e.mu.Lock()
	e.doc.Mode = mode
	e.markDirtyLocked()
	e.mu.Unlock()
	e.onCommit("mode")
	return nil
}

// ─────────────────────────────────────────────────────────────
// Freeform mutators
// ─────────────────────────────────────────────────────────────

// DropCropToFreeform places a crop on the current page centered at
// (x, y). The initial size preserves the crop's aspect ratio at 25% of
// the page width, shrunk further if either dimension would exceed half
// the page. Committed; returns the new item id for selection.
func (e *Editor) DropCropToFreeform(crop domain.Crop, x, y float64) (string, error) {
	if crop.Width <= 0 || crop.Height <= 0 {
		return "", fmt.Errorf("drop crop %s: %w: non-positive crop size", crop.ID, domain.ErrInvalidInput)
	}
	e.mu.Lock()
	page := &e.doc.Pages[e.current]
	aspect := crop.AspectRatio()

	w := page.PageWidth * dropSizeRatio
	h := w / aspect
	maxW := page.PageWidth * dropMaxRatio
	maxH := page.PageHeight * dropMaxRatio
	if w > maxW {
		w = maxW
		h = w / aspect
	}
	if h > maxH {
		h = maxH
		w = h * aspect
	}

	item := domain.PlacedItem{
		ID:          uuid.New().String(),
		CropID:      crop.ID,
		X:           clampMin(x-w/2, 0),
		Y:           clampMin(y-h/2, 0),
		Width:       w,
		Height:      h,
		FrameShape:  domain.ShapeRectangle,
		BorderColor: "#000000",
		BorderStyle: domain.BorderNone,
	}

	e.history.Push(e.items)
	e.items = append(e.items, item)
	e.commitLocked()
	e.mu.Unlock()
	e.onCommit("drop")
	return item.ID, nil
}

// AddMultipleCrops lays crops out row-major on a fixed grid: cells are
// 20% of the page width with 20px padding, each crop contain-fit inside
// its cell. Committed; returns the new item ids in input order.
func (e *Editor) AddMultipleCrops(crops []domain.Crop) ([]string, error) {
	for _, c := range crops {
		if c.Width <= 0 || c.Height <= 0 {
			return nil, fmt.Errorf("add crops: %w: crop %s has non-positive size", domain.ErrInvalidInput, c.ID)
		}
	}
	if len(crops) == 0 {
		return nil, nil
	}
	e.mu.Lock()
	page := &e.doc.Pages[e.current]
	cell := page.PageWidth * gridCellRatio
	perRow := int(page.PageWidth / (cell + gridPadding))
	if perRow < 1 {
		perRow = 1
	}

	e.history.Push(e.items)
	ids := make([]string, 0, len(crops))
	for i, c := range crops {
		col := i % perRow
		row := i / perRow
		cellX := gridPadding + float64(col)*(cell+gridPadding)
		cellY := gridPadding + float64(row)*(cell+gridPadding)

		aspect := c.AspectRatio()
		w := cell
		h := w / aspect
		if h > cell {
			h = cell
			w = h * aspect
		}

		item := domain.PlacedItem{
			ID:          uuid.New().String(),
			CropID:      c.ID,
			X:           cellX + (cell-w)/2,
			Y:           cellY + (cell-h)/2,
			Width:       w,
			Height:      h,
			FrameShape:  domain.ShapeRectangle,
			BorderColor: "#000000",
			BorderStyle: domain.BorderNone,
		}
		e.items = append(e.items, item)
		ids = append(ids, item.ID)
	}
	e.commitLocked()
	e.mu.Unlock()
	e.onCommit("drop-multiple")
	return ids, nil
}

// UpdateItem applies a partial field merge to an item. Committed: the
// pre-mutation state is snapshotted first.
func (e *Editor) UpdateItem(id string, patch ItemPatch) error {
	return e.update(id, patch, true)
}

// UpdateItemSilent applies the same merge without recording history.
// Used for continuous drag/resize/rotate feedback; the gesture ends
// with DragEnd.
func (e *Editor) UpdateItemSilent(id string, patch ItemPatch) error {
	return e.update(id, patch, false)
}

func (e *Editor) update(id string, patch ItemPatch, committed bool) error {
	if err := patch.validate(); err != nil {
		return err
	}
	e.mu.Lock()
	idx := e.findLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("update item %s: %w", id, domain.ErrNotFound)
	}
	if committed {
		e.history.Push(e.items)
	}
	patch.apply(&e.items[idx])
	if committed {
		e.commitLocked()
		e.mu.Unlock()
		e.onCommit("update")
		return nil
	}
	e.mu.Unlock()
	return nil
}

// DeleteItem removes one item. Committed.
func (e *Editor) DeleteItem(id string) error {
	e.mu.Lock()
	idx := e.findLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("delete item %s: %w", id, domain.ErrNotFound)
	}
	e.history.Push(e.items)
	e.items = append(e.items[:idx], e.items[idx+1:]...)
	e.commitLocked()
	e.mu.Unlock()
	e.onCommit("delete")
	return nil
}

// ClearItems removes every item on the current page. Committed.
func (e *Editor) ClearItems() error {
	e.mu.Lock()
	e.history.Push(e.items)
	e.items = nil
	e.commitLocked()
	e.mu.Unlock()
	e.onCommit("clear")
	return nil
}

// NudgeItem translates an item by a fixed delta (keyboard arrows).
// Committed.
func (e *Editor) NudgeItem(id string, dx, dy float64) error {
	e.mu.Lock()
	idx := e.findLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("nudge item %s: %w", id, domain.ErrNotFound)
	}
	e.history.Push(e.items)
	e.items[idx].X += dx
	e.items[idx].Y += dy
	e.commitLocked()
	e.mu.Unlock()
	e.onCommit("nudge")
	return nil
}

// DragEnd checkpoints the current state after a run of silent updates:
// it records to history without discarding any redo branch and pushes
// the working state into the page record.
func (e *Editor) DragEnd() {
	e.mu.Lock()
	e.history.Record(e.items)
	e.commitLocked()
	e.mu.Unlock()
	e.onCommit("drag-end")
}

// Undo restores the most recent snapshot. No-op when the undo stack is
// empty.
func (e *Editor) Undo() bool {
	e.mu.Lock()
	prev, ok := e.history.Undo(e.items)
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.items = prev
	e.commitLocked()
	e.mu.Unlock()
	e.onCommit("undo")
	return true
}

// Redo re-applies the most recently undone snapshot.
func (e *Editor) Redo() bool {
	e.mu.Lock()
	next, ok := e.history.Redo(e.items)
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.items = next
	e.commitLocked()
	e.mu.Unlock()
	e.onCommit("redo")
	return true
}

// ─────────────────────────────────────────────────────────────
// Panel mutators (page-level, no item history)
// ─────────────────────────────────────────────────────────────

// DropCropToPanel assigns a crop to a panel slot, resetting its
// pan/zoom.
func (e *Editor) DropCropToPanel(panelIndex int, cropID string) error {
	e.mu.Lock()
	if err := e.ensurePanelLocked(panelIndex); err != nil {
		e.mu.Unlock()
		return err
	}
	page := &e.doc.Pages[e.current]
	id := cropID
	page.Assignments[panelIndex] = domain.PanelAssignment{CropID: &id, Zoom: 1}
	e.markDirtyLocked()
	e.mu.Unlock()
	e.onCommit("panel-drop")
	return nil
}

// ClearPanel empties a panel slot.
func (e *Editor) ClearPanel(panelIndex int) error {
	e.mu.Lock()
	if err := e.ensurePanelLocked(panelIndex); err != nil {
		e.mu.Unlock()
		return err
	}
	e.doc.Pages[e.current].Assignments[panelIndex] = domain.EmptyAssignment()
	e.markDirtyLocked()
	e.mu.Unlock()
	e.onCommit("panel-clear")
	return nil
}

// SetPanelZoom sets a panel's zoom factor. Zoom must be positive.
func (e *Editor) SetPanelZoom(panelIndex int, zoom float64) error {
	if zoom <= 0 {
		return fmt.Errorf("panel zoom %v: %w", zoom, domain.ErrInvalidInput)
	}
	e.mu.Lock()
	if err := e.ensurePanelLocked(panelIndex); err != nil {
		e.mu.Unlock()
		return err
	}
	e.doc.Pages[e.current].Assignments[panelIndex].Zoom = zoom
	e.markDirtyLocked()
	e.mu.Unlock()
	e.onCommit("panel-zoom")
	return nil
}

// SetPanelOffset sets a panel's pan offset.
func (e *Editor) SetPanelOffset(panelIndex int, offsetX, offsetY float64) error {
	e.mu.Lock()
	if err := e.ensurePanelLocked(panelIndex); err != nil {
		e.mu.Unlock()
		return err
	}
	a := &e.doc.Pages[e.current].Assignments[panelIndex]
	a.OffsetX = offsetX
	a.OffsetY = offsetY
	e.markDirtyLocked()
	e.mu.Unlock()
	e.onCommit("panel-offset")
	return nil
}

// SetLayout changes the current page's panel layout. Assignments are
// kept positionally where the new layout still has the index; extra
// indices are dropped, new indices start empty.
func (e *Editor) SetLayout(layoutID string) error {
	l := layout.Get(layoutID)
	e.mu.Lock()
	page := &e.doc.Pages[e.current]
	page.LayoutID = l.ID
	page.Assignments = layout.RemapAssignments(page.Assignments, len(l.Panels))
	e.markDirtyLocked()
	e.mu.Unlock()
	e.onCommit("layout")
	return nil
}

// ─────────────────────────────────────────────────────────────
// Multi-page operations
// ─────────────────────────────────────────────────────────────

// AddPage appends a new empty page cloning the current page's size
// preset, background, and layout, then selects it. History resets.
func (e *Editor) AddPage() string {
	e.mu.Lock()
	e.syncPageLocked()
	cur := e.doc.Pages[e.current]
	now := time.Now()
	page := domain.Page{
		ID:              uuid.New().String(),
		Name:            fmt.Sprintf("Page %d", len(e.doc.Pages)+1),
		PagePreset:      cur.PagePreset,
		PageWidth:       cur.PageWidth,
		PageHeight:      cur.PageHeight,
		BackgroundColor: cur.BackgroundColor,
		Margin:          cur.Margin,
		LayoutID:        cur.LayoutID,
		Assignments:     emptyAssignments(cur.LayoutID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	e.doc.Pages = append(e.doc.Pages, page)
	e.current = len(e.doc.Pages) - 1
	e.items = nil
	e.history.Reset()
	e.markDirtyLocked()
	e.mu.Unlock()
	e.onCommit("add-page")
	return page.ID
}

// DeletePage removes a page. Deleting the only remaining page is
// rejected. The current index is clamped afterwards and history resets
// to the newly current page.
func (e *Editor) DeletePage(index int) error {
	e.mu.Lock()
	if index < 0 || index >= len(e.doc.Pages) {
		e.mu.Unlock()
		return fmt.Errorf("delete page %d: %w", index, domain.ErrInvalidInput)
	}
	if len(e.doc.Pages) == 1 {
		e.mu.Unlock()
		return fmt.Errorf("delete page %d: %w", index, domain.ErrLastPage)
	}
	if index != e.current {
		e.syncPageLocked()
	}
	e.doc.Pages = append(e.doc.Pages[:index], e.doc.Pages[index+1:]...)
	if e.current >= len(e.doc.Pages) {
		e.current = len(e.doc.Pages) - 1
	} else if index < e.current {
		e.current--
	}
	e.items = domain.ClonePlacedItems(e.doc.Pages[e.current].PlacedItems)
	e.history.Reset()
	e.markDirtyLocked()
	e.mu.Unlock()
	e.onCommit("delete-page")
	return nil
}

// DuplicatePage deep-copies a page, assigning fresh ids to the page and
// every placed item so no id collides across pages. The copy is
// inserted right after the original.
func (e *Editor) DuplicatePage(index int) (string, error) {
	e.mu.Lock()
	if index < 0 || index >= len(e.doc.Pages) {
		e.mu.Unlock()
		return "", fmt.Errorf("duplicate page %d: %w", index, domain.ErrInvalidInput)
	}
	e.syncPageLocked()
	dup := e.doc.Pages[index].Clone()
	dup.ID = uuid.New().String()
	dup.Name = dup.Name + " copy"
	now := time.Now()
	dup.CreatedAt = now
	dup.UpdatedAt = now
	for i := range dup.PlacedItems {
		dup.PlacedItems[i].ID = uuid.New().String()
	}
	e.doc.Pages = append(e.doc.Pages, domain.Page{})
	copy(e.doc.Pages[index+2:], e.doc.Pages[index+1:])
	e.doc.Pages[index+1] = dup
	if e.current > index {
		e.current++
	}
	e.markDirtyLocked()
	e.mu.Unlock()
	e.onCommit("duplicate-page")
	return dup.ID, nil
}

// SelectPage swaps which page's items form the working set. The
// outgoing page receives the working state first; history resets to the
// target page (undo does not cross page switches).
func (e *Editor) SelectPage(index int) error {
	e.mu.Lock()
	if index < 0 || index >= len(e.doc.Pages) {
		e.mu.Unlock()
		return fmt.Errorf("select page %d: %w", index, domain.ErrInvalidInput)
	}
	if index == e.current {
		e.mu.Unlock()
		return nil
	}
	e.syncPageLocked()
	e.current = index
	e.items = domain.ClonePlacedItems(e.doc.Pages[index].PlacedItems)
	e.history.Reset()
	e.mu.Unlock()
	return nil
}

// ─────────────────────────────────────────────────────────────
// internal helpers (callers hold e.mu)
// ─────────────────────────────────────────────────────────────

func (e *Editor) findLocked(id string) int {
	for i := range e.items {
		if e.items[i].ID == id {
			return i
		}
	}
	return -1
}

// commitLocked syncs the working items into the page record and marks
// the document dirty.
func (e *Editor) commitLocked() {
	e.syncPageLocked()
	e.markDirtyLocked()
}

func (e *Editor) syncPageLocked() {
	page := &e.doc.Pages[e.current]
	page.PlacedItems = domain.ClonePlacedItems(e.items)
	page.UpdatedAt = time.Now()
}

func (e *Editor) markDirtyLocked() {
	e.dirty = true
	e.doc.UpdatedAt = time.Now()
}

// ensurePanelLocked grows the assignment slice to the layout's panel
// count (dense, positional) and range-checks the index.
func (e *Editor) ensurePanelLocked(panelIndex int) error {
	page := &e.doc.Pages[e.current]
	count := len(layout.Get(page.LayoutID).Panels)
	if len(page.Assignments) != count {
		page.Assignments = layout.RemapAssignments(page.Assignments, count)
	}
	if panelIndex < 0 || panelIndex >= count {
		return fmt.Errorf("panel %d: %w: layout %s has %d panels",
			panelIndex, domain.ErrInvalidInput, page.LayoutID, count)
	}
	return nil
}

func emptyAssignments(layoutID string) []domain.PanelAssignment {
	return layout.RemapAssignments(nil, len(layout.Get(layoutID).Panels))
}

func clampMin(v, min float64) float64 {
	if v < min {
		return min
	}
	return v
}
