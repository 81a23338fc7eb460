package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ExportRecord is one rendered page file with its metadata row.
type ExportRecord struct {
	ID            string    `json:"id"`
	CompositionID string    `json:"compositionId"`
	PageIndex     int       `json:"pageIndex"`
	FilePath      string    `json:"filePath"`
	Format        string    `json:"format"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ExportStore writes rendered page files under exports/<compositionID>/
// and tracks them in the exports table.
type ExportStore struct {
	db *DB
}

func NewExportStore(db *DB) *ExportStore {
	return &ExportStore{db: db}
}

// SaveExport writes one rendered page to disk and records it. Pages are
// named page-001.png, page-002.png, ... so directory listings sort in
// page order.
func (s *ExportStore) SaveExport(compositionID string, pageIndex int, format string, data []byte) (*ExportRecord, error) {
	dir := filepath.Join(s.db.ExportsDir(), compositionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("page-%03d.%s", pageIndex+1, format))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("write export file: %w", err)
	}

	rec := &ExportRecord{
		ID:            uuid.New().String(),
		CompositionID: compositionID,
		PageIndex:     pageIndex,
		FilePath:      path,
		Format:        format,
		CreatedAt:     time.Now(),
	}
	_, err := s.db.Conn().Exec(`
		INSERT INTO exports (id, composition_id, page_index, file_path, format, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CompositionID, rec.PageIndex, rec.FilePath, rec.Format, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("record export: %w", err)
	}
	return rec, nil
}

// ListExports returns export records for a composition, newest first.
func (s *ExportStore) ListExports(compositionID string) ([]ExportRecord, error) {
	rows, err := s.db.Conn().Query(`
		SELECT id, composition_id, page_index, file_path, format, created_at
		FROM exports WHERE composition_id = ? ORDER BY created_at DESC, page_index`,
		compositionID)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var out []ExportRecord
	for rows.Next() {
		var rec ExportRecord
		if err := rows.Scan(&rec.ID, &rec.CompositionID, &rec.PageIndex,
			&rec.FilePath, &rec.Format, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ClearExports removes a composition's export rows and files before a
// fresh export run.
func (s *ExportStore) ClearExports(compositionID string) error {
	if _, err := s.db.Conn().Exec(`DELETE FROM exports WHERE composition_id = ?`, compositionID); err != nil {
		return fmt.Errorf("clear exports: %w", err)
	}
	dir := filepath.Join(s.db.ExportsDir(), compositionID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear export files: %w", err)
	}
	return nil
}

// SaveThumb writes a composition thumbnail and returns its path.
// Thumbnails are JPEG: they are small lossy previews, never a source
// for further editing.
func (s *ExportStore) SaveThumb(compositionID string, data []byte) (string, error) {
	path := filepath.Join(s.db.ThumbsDir(), compositionID+".jpg")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write thumbnail: %w", err)
	}
	return path, nil
}
