package compose_test

import (
	"errors"
	"sync"
	"testing"

	"vistacrop/internal/compose"
	"vistacrop/internal/domain"
	"vistacrop/internal/layout"
)

func newTestEditor(t *testing.T, mode domain.CompositionMode) *compose.Editor {
	t.Helper()
	doc := compose.NewDocument("test", mode, "a4-portrait")
	ed, err := compose.NewEditor(doc, nil)
	if err != nil {
		t.Fatalf("NewEditor: %v", err)
	}
	return ed
}

func testCrop(id string, w, h float64) domain.Crop {
	return domain.Crop{ID: id, Width: w, Height: h, ImageID: "img-" + id,
		OriginalImageWidth: w * 2, OriginalImageHeight: h * 2}
}

func TestDropCropToFreeform_InitialGeometry(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	// 400x200 crop at (500,500) on a 1240x1754 page.
	id, err := ed.DropCropToFreeform(testCrop("c1", 400, 200), 500, 500)
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	items := ed.Items()
	if len(items) != 1 || items[0].ID != id {
		t.Fatalf("expected one item with id %s, got %v", id, items)
	}
	it := items[0]
	if it.Width != 310 || it.Height != 155 {
		t.Errorf("expected 310x155, got %vx%v", it.Width, it.Height)
	}
	if it.X != 345 || it.Y != 422.5 {
		t.Errorf("expected position (345, 422.5), got (%v, %v)", it.X, it.Y)
	}
	if it.FrameShape != domain.ShapeRectangle {
		t.Errorf("expected rectangle default shape, got %s", it.FrameShape)
	}
}

func TestDropCropToFreeform_CapsAtHalfPage(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	// Extremely tall crop: the 50% height cap binds and width shrinks
	// to preserve aspect ratio.
	_, err := ed.DropCropToFreeform(testCrop("tall", 100, 2000), 600, 800)
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	it := ed.Items()[0]
	if it.Height != 877 { // 50% of 1754
		t.Errorf("expected height capped at 877, got %v", it.Height)
	}
	if got, want := it.Width, 877*(100.0/2000.0); got != want {
		t.Errorf("expected width %v, got %v", want, got)
	}
}

func TestDropCropToFreeform_ClampsToNonNegative(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	if _, err := ed.DropCropToFreeform(testCrop("c", 400, 200), 0, 0); err != nil {
		t.Fatalf("drop: %v", err)
	}
	it := ed.Items()[0]
	if it.X != 0 || it.Y != 0 {
		t.Errorf("expected clamp to (0,0), got (%v, %v)", it.X, it.Y)
	}
}

func TestDropCropToFreeform_RejectsDegenerateCrop(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	_, err := ed.DropCropToFreeform(testCrop("bad", 0, 100), 10, 10)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(ed.Items()) != 0 {
		t.Fatal("rejected mutation must not change state")
	}
}

func TestAddMultipleCrops_GridLayout(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	crops := []domain.Crop{
		testCrop("a", 100, 100),
		testCrop("b", 100, 100),
		testCrop("c", 100, 100),
		testCrop("d", 100, 100),
		testCrop("e", 100, 100),
	}
	ids, err := ed.AddMultipleCrops(crops)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("expected 5 ids, got %d", len(ids))
	}
	items := ed.Items()
	// Page width 1240 → cell 248, padding 20 → 4 per row.
	// Item 4 starts the second row.
	if items[4].Y <= items[0].Y {
		t.Errorf("expected item 4 on a new row: y0=%v y4=%v", items[0].Y, items[4].Y)
	}
	if items[0].Y != items[3].Y {
		t.Errorf("expected items 0..3 on the same row: %v vs %v", items[0].Y, items[3].Y)
	}
	// Square crops fill the square cell exactly.
	if items[0].Width != 248 || items[0].Height != 248 {
		t.Errorf("expected 248x248 cell fit, got %vx%v", items[0].Width, items[0].Height)
	}
}

func TestUpdateItem_CommittedIsUndoable(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	id, _ := ed.DropCropToFreeform(testCrop("c", 400, 200), 500, 500)

	x := 10.0
	if err := ed.UpdateItem(id, compose.ItemPatch{X: &x}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if ed.Items()[0].X != 10 {
		t.Fatal("update not applied")
	}
	if !ed.Undo() {
		t.Fatal("undo failed")
	}
	if got := ed.Items()[0].X; got != 345 {
		t.Errorf("undo must restore pre-mutation x=345, got %v", got)
	}
	if !ed.Redo() {
		t.Fatal("redo failed")
	}
	if got := ed.Items()[0].X; got != 10 {
		t.Errorf("redo must restore x=10, got %v", got)
	}
}

func TestUpdateItemSilent_NotRecorded(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	id, _ := ed.DropCropToFreeform(testCrop("c", 400, 200), 500, 500)

	for _, x := range []float64{100, 120, 140} {
		v := x
		if err := ed.UpdateItemSilent(id, compose.ItemPatch{X: &v}); err != nil {
			t.Fatalf("silent update: %v", err)
		}
	}
	// One undo steps over the whole silent run, back to before the drop
	// gesture's committed predecessor state.
	if !ed.Undo() {
		t.Fatal("undo failed")
	}
	if len(ed.Items()) != 0 {
		t.Fatalf("expected undo to remove the dropped item, got %v", ed.Items())
	}
}

func TestDragEnd_Checkpoint(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	id, _ := ed.DropCropToFreeform(testCrop("c", 400, 200), 500, 500)

	// Simulated drag: silent moves, then the end-of-gesture checkpoint.
	x := 700.0
	_ = ed.UpdateItemSilent(id, compose.ItemPatch{X: &x})
	ed.DragEnd()

	// The checkpoint records the post-drag state, so a later committed
	// mutation undoes back to the dragged position, not to the
	// pre-drag one.
	y := 900.0
	_ = ed.UpdateItem(id, compose.ItemPatch{Y: &y})
	if !ed.Undo() {
		t.Fatal("undo failed")
	}
	it := ed.Items()[0]
	if it.X != 700 || it.Y == 900 {
		t.Errorf("expected x=700 with y restored, got (%v, %v)", it.X, it.Y)
	}
	// The checkpoint itself sits on the stack beneath: one more undo
	// reproduces the same dragged state (recorded, not pre-state).
	if !ed.Undo() {
		t.Fatal("second undo failed")
	}
	if got := ed.Items()[0].X; got != 700 {
		t.Errorf("expected checkpointed x=700, got %v", got)
	}
}

func TestCommitAfterUndoDiscardsRedo(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	id, _ := ed.DropCropToFreeform(testCrop("c", 400, 200), 500, 500)
	x := 10.0
	_ = ed.UpdateItem(id, compose.ItemPatch{X: &x})
	if !ed.Undo() {
		t.Fatal("undo failed")
	}
	if !ed.CanRedo() {
		t.Fatal("expected pending redo")
	}
	y := 20.0
	_ = ed.UpdateItem(id, compose.ItemPatch{Y: &y})
	if ed.CanRedo() {
		t.Fatal("committing after undo must discard the redo branch")
	}
	if ed.Redo() {
		t.Fatal("redo must be a no-op after branch discard")
	}
}

func TestDeleteAndClearItems(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	id, _ := ed.DropCropToFreeform(testCrop("a", 100, 100), 100, 100)
	_, _ = ed.DropCropToFreeform(testCrop("b", 100, 100), 400, 400)

	if err := ed.DeleteItem(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(ed.Items()) != 1 {
		t.Fatal("expected one item after delete")
	}
	if err := ed.DeleteItem("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := ed.ClearItems(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(ed.Items()) != 0 {
		t.Fatal("expected empty page after clear")
	}
	// Clear is committed: undo restores the remaining item.
	if !ed.Undo() {
		t.Fatal("undo failed")
	}
	if len(ed.Items()) != 1 {
		t.Fatal("undo after clear must restore items")
	}
}

func TestNudgeItem(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	id, _ := ed.DropCropToFreeform(testCrop("c", 400, 200), 500, 500)
	if err := ed.NudgeItem(id, 1, -1); err != nil {
		t.Fatalf("nudge: %v", err)
	}
	it := ed.Items()[0]
	if it.X != 346 || it.Y != 421.5 {
		t.Errorf("expected (346, 421.5), got (%v, %v)", it.X, it.Y)
	}
}

func TestUpdateItem_ValidationRejectsBeforeMutation(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	id, _ := ed.DropCropToFreeform(testCrop("c", 400, 200), 500, 500)

	bad := -5.0
	if err := ed.UpdateItem(id, compose.ItemPatch{Width: &bad}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if ed.Items()[0].Width != 310 {
		t.Fatal("rejected patch must not mutate state")
	}
	two := []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}
	if err := ed.UpdateItem(id, compose.ItemPatch{CustomPoints: two}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for 2 custom points, got %v", err)
	}
	// Rejected patches also leave history untouched: undo removes the item.
	if !ed.Undo() {
		t.Fatal("undo failed")
	}
	if len(ed.Items()) != 0 {
		t.Fatal("expected drop to be the only committed mutation")
	}
}

func TestPanelAssignments(t *testing.T) {
	ed := newTestEditor(t, domain.ModePanels)
	if err := ed.SetLayout("4-grid"); err != nil {
		t.Fatalf("set layout: %v", err)
	}
	if err := ed.DropCropToPanel(2, "crop-x"); err != nil {
		t.Fatalf("panel drop: %v", err)
	}
	page := ed.CurrentPage()
	if len(page.Assignments) != 4 {
		t.Fatalf("expected 4 assignments, got %d", len(page.Assignments))
	}
	a := page.Assignments[2]
	if a.CropID == nil || *a.CropID != "crop-x" || a.Zoom != 1 {
		t.Errorf("unexpected assignment: %+v", a)
	}

	if err := ed.SetPanelZoom(2, 1.5); err != nil {
		t.Fatalf("zoom: %v", err)
	}
	if err := ed.SetPanelZoom(2, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero zoom, got %v", err)
	}
	if err := ed.SetPanelOffset(2, 12, -8); err != nil {
		t.Fatalf("offset: %v", err)
	}
	if err := ed.ClearPanel(2); err != nil {
		t.Fatalf("clear panel: %v", err)
	}
	a = ed.CurrentPage().Assignments[2]
	if a.CropID != nil || a.Zoom != 1 || a.OffsetX != 0 {
		t.Errorf("expected empty assignment, got %+v", a)
	}

	if err := ed.DropCropToPanel(9, "nope"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestSetLayout_PreservesAssignmentsPositionally(t *testing.T) {
	ed := newTestEditor(t, domain.ModePanels)
	_ = ed.SetLayout("4-grid")
	for i, c := range []string{"a", "b", "c", "d"} {
		if err := ed.DropCropToPanel(i, c); err != nil {
			t.Fatalf("drop %d: %v", i, err)
		}
	}
	_ = ed.SetLayout("2-horizontal")
	page := ed.CurrentPage()
	if len(page.Assignments) != 2 {
		t.Fatalf("expected 2 assignments after layout change, got %d", len(page.Assignments))
	}
	if *page.Assignments[0].CropID != "a" || *page.Assignments[1].CropID != "b" {
		t.Errorf("indices 0/1 not preserved: %+v", page.Assignments)
	}
}

func TestPages_AddDeleteDuplicateSelect(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	_, _ = ed.DropCropToFreeform(testCrop("c", 400, 200), 500, 500)
	firstItemID := ed.Items()[0].ID

	pageID := ed.AddPage()
	if pageID == "" {
		t.Fatal("expected new page id")
	}
	if ed.CurrentPageIndex() != 1 {
		t.Fatalf("expected new page selected, index %d", ed.CurrentPageIndex())
	}
	if len(ed.Items()) != 0 {
		t.Fatal("new page must start empty")
	}
	if ed.CanUndo() {
		t.Fatal("history must reset on page add")
	}

	// Duplicate page 0: fresh page and item ids.
	dupID, err := ed.DuplicatePage(0)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	doc := ed.Snapshot()
	if len(doc.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(doc.Pages))
	}
	dup := doc.Pages[1]
	if dup.ID != dupID || dup.ID == doc.Pages[0].ID {
		t.Error("duplicate must get a fresh page id")
	}
	if len(dup.PlacedItems) != 1 || dup.PlacedItems[0].ID == firstItemID {
		t.Error("duplicated items must get fresh ids")
	}
	if dup.PlacedItems[0].CropID != "c" {
		t.Error("duplicated items must keep their crop reference")
	}

	// Select page 0; working set swaps, history resets.
	if err := ed.SelectPage(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(ed.Items()) != 1 {
		t.Fatal("expected page 0 items in the working set")
	}
	if ed.CanUndo() {
		t.Fatal("history must not survive a page switch")
	}

	// Delete from the back; the current index stays on page 0.
	if err := ed.DeletePage(2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ed.DeletePage(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ed.DeletePage(0); !errors.Is(err, domain.ErrLastPage) {
		t.Fatalf("expected ErrLastPage, got %v", err)
	}
	if got := len(ed.Snapshot().Pages); got != 1 {
		t.Fatalf("page count must remain 1, got %d", got)
	}
}

func TestDeletePage_ClampsCurrentIndex(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	ed.AddPage()
	ed.AddPage() // current = 2
	if err := ed.DeletePage(2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ed.CurrentPageIndex() != 1 {
		t.Fatalf("expected index clamped to 1, got %d", ed.CurrentPageIndex())
	}
}

func TestCommitHook_FiresOnCommittedOnly(t *testing.T) {
	var reasons []string
	doc := compose.NewDocument("test", domain.ModeFreeform, "a4-portrait")
	ed, err := compose.NewEditor(doc, func(reason string) { reasons = append(reasons, reason) })
	if err != nil {
		t.Fatalf("NewEditor: %v", err)
	}
	id, _ := ed.DropCropToFreeform(testCrop("c", 400, 200), 500, 500)
	x := 1.0
	_ = ed.UpdateItemSilent(id, compose.ItemPatch{X: &x})
	_ = ed.UpdateItem(id, compose.ItemPatch{Y: &x})
	ed.DragEnd()

	want := []string{"drop", "update", "drag-end"}
	if len(reasons) != len(want) {
		t.Fatalf("expected %v, got %v", want, reasons)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Errorf("hook %d: expected %s, got %s", i, want[i], reasons[i])
		}
	}
}

func TestSnapshot_IndependentOfWorkingState(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	id, _ := ed.DropCropToFreeform(testCrop("c", 400, 200), 500, 500)
	snap := ed.Snapshot()
	x := 999.0
	_ = ed.UpdateItem(id, compose.ItemPatch{X: &x})
	if snap.Pages[0].PlacedItems[0].X == 999 {
		t.Fatal("snapshot must not observe later mutations")
	}
}

func TestNewEditor_RejectsEmptyDocument(t *testing.T) {
	_, err := compose.NewEditor(domain.Document{}, nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewDocument_Defaults(t *testing.T) {
	doc := compose.NewDocument("n", domain.ModePanels, "a4-portrait")
	if len(doc.Pages) != 1 {
		t.Fatalf("expected one page, got %d", len(doc.Pages))
	}
	p := doc.Pages[0]
	if p.PageWidth != 1240 || p.PageHeight != 1754 {
		t.Errorf("unexpected page size: %vx%v", p.PageWidth, p.PageHeight)
	}
	wantPanels := len(layout.Get(layout.DefaultLayoutID).Panels)
	if len(p.Assignments) != wantPanels {
		t.Errorf("expected %d empty assignments, got %d", wantPanels, len(p.Assignments))
	}
}

func TestCurrentPageState_ConsistentAfterPageSwitch(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	if _, err := ed.DropCropToFreeform(testCrop("c1", 400, 200), 500, 500); err != nil {
		t.Fatalf("drop: %v", err)
	}

	// A stale snapshot must not be paired with a later index read: after
	// adding a page the index points past the old snapshot's page slice.
	snap := ed.Snapshot()
	ed.AddPage()
	if idx := ed.CurrentPageIndex(); idx < len(snap.Pages) {
		t.Fatalf("expected index %d beyond stale snapshot of %d pages", idx, len(snap.Pages))
	}

	page, mode := ed.CurrentPageState()
	if mode != domain.ModeFreeform {
		t.Errorf("expected freeform mode, got %s", mode)
	}
	if len(page.PlacedItems) != 0 {
		t.Errorf("expected the fresh current page, got %d items", len(page.PlacedItems))
	}
	if page.ID != ed.CurrentPage().ID {
		t.Error("page does not match the current page")
	}
}

func TestCurrentPageState_SafeDuringConcurrentPageAdds(t *testing.T) {
	ed := newTestEditor(t, domain.ModeFreeform)
	if _, err := ed.DropCropToFreeform(testCrop("c1", 400, 200), 500, 500); err != nil {
		t.Fatalf("drop: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			ed.AddPage()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			page, _ := ed.CurrentPageState()
			if page.PageWidth <= 0 {
				t.Error("read a zero-value page")
				return
			}
		}
	}()
	wg.Wait()
}
