package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vistacrop/internal/domain"
	"vistacrop/internal/layout"
)

// CompositionStore implements domain.CompositionStore using SQLite.
// Documents are stored as JSON blobs; listing metadata is denormalized
// into columns.
type CompositionStore struct {
	db *DB
}

func NewCompositionStore(db *DB) *CompositionStore {
	return &CompositionStore{db: db}
}

func (s *CompositionStore) CreateComposition(doc *domain.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	blob, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode composition: %w", err)
	}
	_, err = s.db.Conn().Exec(
		`INSERT INTO compositions (id, name, mode, doc_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, string(doc.Mode), string(blob), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert composition: %w", err)
	}
	return nil
}

func (s *CompositionStore) GetComposition(id string) (*domain.Document, error) {
	var blob string
	err := s.db.Conn().QueryRow(
		`SELECT doc_json FROM compositions WHERE id = ?`, id,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get composition %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get composition %s: %w", id, err)
	}
	doc, err := decodeDocument([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("get composition %s: %w", id, err)
	}
	doc.ID = id
	return doc, nil
}

func (s *CompositionStore) SaveComposition(doc *domain.Document) error {
	doc.UpdatedAt = time.Now()
	blob, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode composition: %w", err)
	}
	res, err := s.db.Conn().Exec(
		`UPDATE compositions SET name = ?, mode = ?, doc_json = ?, updated_at = ? WHERE id = ?`,
		doc.Name, string(doc.Mode), string(blob), doc.UpdatedAt, doc.ID,
	)
	if err != nil {
		return fmt.Errorf("save composition %s: %w", doc.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("save composition %s: %w", doc.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *CompositionStore) ListCompositions() ([]domain.CompositionMeta, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, name, mode, thumb_path, created_at, updated_at FROM compositions ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list compositions: %w", err)
	}
	defer rows.Close()

	var out []domain.CompositionMeta
	for rows.Next() {
		var m domain.CompositionMeta
		if err := rows.Scan(&m.ID, &m.Name, &m.Mode, &m.ThumbPath, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan composition: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *CompositionStore) DeleteComposition(id string) error {
	res, err := s.db.Conn().Exec(`DELETE FROM compositions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete composition %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete composition %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetThumbPath records where a composition's thumbnail file lives.
func (s *CompositionStore) SetThumbPath(id, path string) error {
	_, err := s.db.Conn().Exec(`UPDATE compositions SET thumb_path = ? WHERE id = ?`, path, id)
	return err
}

// ── legacy document migration ──────────────────────────────

// legacyDocument is the pre-multipage persisted shape: one implicit
// page split across a "composition" header and a flat placedItems
// array. Accepted on load and upconverted to the pages schema.
type legacyDocument struct {
	Composition *legacyComposition  `json:"composition"`
	PlacedItems []domain.PlacedItem `json:"placedItems"`
}

type legacyComposition struct {
	Name            string                   `json:"name"`
	Mode            string                   `json:"mode"`
	PagePreset      string                   `json:"pagePreset"`
	PageWidth       float64                  `json:"pageWidth"`
	PageHeight      float64                  `json:"pageHeight"`
	BackgroundColor string                   `json:"backgroundColor"`
	Margin          float64                  `json:"margin"`
	LayoutID        string                   `json:"layoutId"`
	Assignments     []domain.PanelAssignment `json:"assignments"`
}

// decodeDocument parses either the current {mode, pages} schema or the
// legacy single-page shape.
func decodeDocument(blob []byte) (*domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("decode composition: %w", err)
	}
	if len(doc.Pages) > 0 {
		return &doc, nil
	}

	var legacy legacyDocument
	if err := json.Unmarshal(blob, &legacy); err != nil || legacy.Composition == nil {
		return nil, fmt.Errorf("decode composition: unrecognized document shape")
	}
	return upconvertLegacy(legacy), nil
}

// upconvertLegacy turns the legacy shape into a one-page document.
func upconvertLegacy(legacy legacyDocument) *domain.Document {
	c := legacy.Composition
	mode := domain.CompositionMode(c.Mode)
	if mode != domain.ModePanels && mode != domain.ModeFreeform {
		mode = domain.ModeFreeform
	}
	preset := layout.GetPagePreset(c.PagePreset)
	width, height := c.PageWidth, c.PageHeight
	if width <= 0 || height <= 0 {
		width, height = preset.Width, preset.Height
	}
	bg := c.BackgroundColor
	if bg == "" {
		bg = "#ffffff"
	}
	layoutID := c.LayoutID
	if layoutID == "" {
		layoutID = layout.DefaultLayoutID
	}
	now := time.Now()
	page := domain.Page{
		ID:              uuid.New().String(),
		Name:            "Page 1",
		PagePreset:      preset.ID,
		PageWidth:       width,
		PageHeight:      height,
		BackgroundColor: bg,
		Margin:          c.Margin,
		LayoutID:        layoutID,
		Assignments:     layout.RemapAssignments(c.Assignments, len(layout.Get(layoutID).Panels)),
		PlacedItems:     legacy.PlacedItems,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return &domain.Document{
		Name:      c.Name,
		Mode:      mode,
		Pages:     []domain.Page{page},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
