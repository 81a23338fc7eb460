package compose

import "vistacrop/internal/domain"

// historyLimit bounds both stacks. The oldest undo entry is evicted
// when a push overflows the stack.
const historyLimit = 50

// History keeps undo/redo snapshots of a page's placed items. Snapshots
// are deep copies, so later mutation of the working slice never bleeds
// into recorded states. A History lives for one page-switch lifetime:
// selecting another page resets it.
type History struct {
	undo [][]domain.PlacedItem
	redo [][]domain.PlacedItem
}

// Push snapshots the given state onto the undo stack and discards the
// redo stack. Committing a new change invalidates any redo branch.
func (h *History) Push(items []domain.PlacedItem) {
	h.undo = pushBounded(h.undo, domain.ClonePlacedItems(items))
	h.redo = nil
}

// Record snapshots the given state without touching the redo stack.
// Used as the checkpoint after a run of silent updates (end of a drag
// gesture), where no redo branch exists to discard.
func (h *History) Record(items []domain.PlacedItem) {
	h.undo = pushBounded(h.undo, domain.ClonePlacedItems(items))
}

// Undo pops the most recent snapshot, pushing the current state onto
// the redo stack. Returns false (and leaves both stacks untouched) when
// there is nothing to undo.
func (h *History) Undo(current []domain.PlacedItem) ([]domain.PlacedItem, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	top := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = pushBounded(h.redo, domain.ClonePlacedItems(current))
	return top, true
}

// Redo is the inverse of Undo.
func (h *History) Redo(current []domain.PlacedItem) ([]domain.PlacedItem, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}
	top := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = pushBounded(h.undo, domain.ClonePlacedItems(current))
	return top, true
}

// Reset drops all history. Called on page switches.
func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// pushBounded appends and evicts from the base once over the limit.
func pushBounded(stack [][]domain.PlacedItem, snap []domain.PlacedItem) [][]domain.PlacedItem {
	stack = append(stack, snap)
	if len(stack) > historyLimit {
		// Copy forward so the evicted snapshot can be collected.
		stack = append(stack[:0:0], stack[1:]...)
	}
	return stack
}
