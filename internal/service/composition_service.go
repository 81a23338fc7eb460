package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"

	"vistacrop/internal/compose"
	"vistacrop/internal/domain"
)

// autosaveDelay is how long after the last committed mutation the open
// composition is written back to the store.
const autosaveDelay = 2 * time.Second

// ─────────────────────────────────────────────────────────────
// Composition Service — document lifecycle plus the open editor
// ─────────────────────────────────────────────────────────────

// CompositionService manages saved compositions and the single open
// editing session. Committed editor mutations schedule a debounced
// autosave; switching or closing a composition flushes it first.
type CompositionService struct {
	store   domain.CompositionStore
	emitter EventEmitter
	log     *slog.Logger

	mu        sync.Mutex
	editor    *compose.Editor
	openID    string
	scheduler func(func())
}

// NewCompositionService creates a CompositionService.
func NewCompositionService(store domain.CompositionStore, emitter EventEmitter, log *slog.Logger) *CompositionService {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CompositionService{
		store:     store,
		emitter:   emitter,
		log:       log,
		scheduler: debounce.New(autosaveDelay),
	}
}

// CreateComposition creates and persists a new empty document.
func (s *CompositionService) CreateComposition(name string, mode domain.CompositionMode, presetID string) (*domain.Document, error) {
	if mode != domain.ModePanels && mode != domain.ModeFreeform {
		return nil, fmt.Errorf("create composition: mode %q: %w", mode, domain.ErrInvalidInput)
	}
	doc := compose.NewDocument(name, mode, presetID)
	if err := s.store.CreateComposition(&doc); err != nil {
		return nil, err
	}
	s.emitter.Emit(context.Background(), "composition:created", doc.ID)
	return &doc, nil
}

// ListCompositions returns metadata for every saved composition.
func (s *CompositionService) ListCompositions() ([]domain.CompositionMeta, error) {
	return s.store.ListCompositions()
}

// GetComposition loads a saved document without opening it for editing.
func (s *CompositionService) GetComposition(id string) (*domain.Document, error) {
	return s.store.GetComposition(id)
}

// DeleteComposition removes a saved composition. Deleting the open one
// discards the editing session without saving.
func (s *CompositionService) DeleteComposition(id string) error {
	s.mu.Lock()
	if s.openID == id {
		s.editor = nil
		s.openID = ""
	}
	s.mu.Unlock()
	if err := s.store.DeleteComposition(id); err != nil {
		return err
	}
	s.emitter.Emit(context.Background(), "composition:deleted", id)
	return nil
}

// Open loads a composition into a fresh editor, flushing any unsaved
// work in the previously open one first.
func (s *CompositionService) Open(id string) (*compose.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushLocked()

	doc, err := s.store.GetComposition(id)
	if err != nil {
		return nil, err
	}
	editor, err := compose.NewEditor(*doc, s.onCommit)
	if err != nil {
		return nil, fmt.Errorf("open composition %s: %w", id, err)
	}
	s.editor = editor
	s.openID = id
	s.emitter.Emit(context.Background(), "composition:opened", id)
	return editor, nil
}

// Editor returns the open editing session, or ErrNotFound when no
// composition is open.
func (s *CompositionService) Editor() (*compose.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor == nil {
		return nil, fmt.Errorf("no open composition: %w", domain.ErrNotFound)
	}
	return s.editor, nil
}

// OpenID returns the id of the open composition, or "".
func (s *CompositionService) OpenID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openID
}

// Flush writes the open document back to the store immediately if it
// has unsaved changes. Called on shutdown and before exports so the
// rendered output matches the edited state.
func (s *CompositionService) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

// onCommit runs after every committed editor mutation, outside the
// editor lock. It notifies clients and restarts the autosave timer.
func (s *CompositionService) onCommit(reason string) {
	s.emitter.Emit(context.Background(), "composition:changed", reason)
	s.scheduler(s.autosave)
}

func (s *CompositionService) autosave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

// flushLocked persists the open editor's snapshot when dirty. A failed
// write keeps the dirty flag set so the next commit retries it.
func (s *CompositionService) flushLocked() {
	if s.editor == nil || s.openID == "" || !s.editor.Dirty() {
		return
	}
	doc := s.editor.Snapshot()
	doc.ID = s.openID
	if err := s.store.SaveComposition(&doc); err != nil {
		s.log.Warn("autosave failed", "composition", s.openID, "error", err)
		return
	}
	s.editor.MarkSaved()
	s.log.Debug("composition saved", "composition", s.openID)
}
