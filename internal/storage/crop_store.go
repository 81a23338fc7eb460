package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"vistacrop/internal/domain"
)

// CropStore implements domain.CropStore: crop records in SQLite plus
// preview and original bitmaps as files under the data directory.
// Previews live at previews/<cropID>.png, originals at
// images/<imageID>.<ext>.
type CropStore struct {
	db  *DB
	log *slog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewCropStore(db *DB, log *slog.Logger) *CropStore {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CropStore{db: db, log: log}
}

func (s *CropStore) GetCrop(ctx context.Context, cropID string) (*domain.Crop, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, image_id, x, y, width, height, original_width, original_height,
		       rotation, filter, created_at, updated_at
		FROM crops WHERE id = ?`, cropID)
	c, err := scanCrop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get crop %s: %w", cropID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get crop %s: %w", cropID, err)
	}
	return c, nil
}

func (s *CropStore) ListCrops(ctx context.Context) ([]domain.Crop, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, image_id, x, y, width, height, original_width, original_height,
		       rotation, filter, created_at, updated_at
		FROM crops ORDER BY image_id, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list crops: %w", err)
	}
	defer rows.Close()

	var out []domain.Crop
	for rows.Next() {
		c, err := scanCrop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crop: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SaveCrops replaces every crop of an image in one transaction, so a
// re-crop of the same source never leaves stale rows behind.
func (s *CropStore) SaveCrops(ctx context.Context, imageID string, crops []domain.Crop) error {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save crops: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM crops WHERE image_id = ?`, imageID); err != nil {
		return fmt.Errorf("clear crops for %s: %w", imageID, err)
	}
	now := time.Now()
	for i := range crops {
		c := &crops[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.ImageID = imageID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		_, err := tx.ExecContext(ctx, `
			INSERT INTO crops (id, image_id, x, y, width, height, original_width,
			                   original_height, rotation, filter, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.ImageID, c.X, c.Y, c.Width, c.Height,
			c.OriginalImageWidth, c.OriginalImageHeight, c.Rotation, c.Filter,
			c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert crop %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *CropStore) UpdateCrop(ctx context.Context, imageID, cropID string, patch domain.CropPatch) (*domain.Crop, error) {
	c, err := s.GetCrop(ctx, cropID)
	if err != nil {
		return nil, err
	}
	if c.ImageID != imageID {
		return nil, fmt.Errorf("update crop %s: %w", cropID, domain.ErrNotFound)
	}
	if patch.X != nil {
		c.X = *patch.X
	}
	if patch.Y != nil {
		c.Y = *patch.Y
	}
	if patch.Width != nil {
		c.Width = *patch.Width
	}
	if patch.Height != nil {
		c.Height = *patch.Height
	}
	if patch.Rotation != nil {
		c.Rotation = *patch.Rotation
	}
	if patch.Filter != nil {
		c.Filter = *patch.Filter
	}
	c.UpdatedAt = time.Now()
	_, err = s.db.Conn().ExecContext(ctx, `
		UPDATE crops SET x = ?, y = ?, width = ?, height = ?, rotation = ?,
		                 filter = ?, updated_at = ?
		WHERE id = ?`,
		c.X, c.Y, c.Width, c.Height, c.Rotation, c.Filter, c.UpdatedAt, c.ID)
	if err != nil {
		return nil, fmt.Errorf("update crop %s: %w", cropID, err)
	}
	return c, nil
}

func (s *CropStore) DeleteCrop(ctx context.Context, imageID, cropID string) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM crops WHERE id = ? AND image_id = ?`, cropID, imageID)
	if err != nil {
		return fmt.Errorf("delete crop %s: %w", cropID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete crop %s: %w", cropID, domain.ErrNotFound)
	}
	// Preview file removal is best-effort: a leftover file is harmless.
	os.Remove(filepath.Join(s.db.PreviewsDir(), cropID+".png"))
	return nil
}

// PreviewImage loads the cropped preview bitmap for a crop.
func (s *CropStore) PreviewImage(ctx context.Context, cropID string) (image.Image, error) {
	img, err := loadImage(filepath.Join(s.db.PreviewsDir(), cropID+".png"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("preview for crop %s: %w", cropID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("preview for crop %s: %w", cropID, err)
	}
	return img, nil
}

// OriginalImage loads the full-resolution source bitmap by image id,
// accepting any of the supported extensions.
func (s *CropStore) OriginalImage(ctx context.Context, imageID string) (image.Image, error) {
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".webp"} {
		img, err := loadImage(filepath.Join(s.db.ImagesDir(), imageID+ext))
		if err == nil {
			return img, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("original image %s: %w", imageID, err)
		}
	}
	return nil, fmt.Errorf("original image %s: %w", imageID, domain.ErrNotFound)
}

// StorePreview writes a crop's preview bitmap to disk as PNG.
func (s *CropStore) StorePreview(cropID string, data []byte) error {
	path := filepath.Join(s.db.PreviewsDir(), cropID+".png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("store preview %s: %w", cropID, err)
	}
	return nil
}

// StoreOriginal writes a source image to disk under its image id.
func (s *CropStore) StoreOriginal(imageID, ext string, data []byte) error {
	ext = strings.ToLower(ext)
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" && ext != ".webp" {
		return fmt.Errorf("store original %s: unsupported extension %q: %w", imageID, ext, domain.ErrInvalidInput)
	}
	path := filepath.Join(s.db.ImagesDir(), imageID+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("store original %s: %w", imageID, err)
	}
	return nil
}

// Watch starts a filesystem watcher over the image directories and
// invokes onChange with the affected file's base name (without
// extension) whenever a bitmap is written, replaced, or removed. Used
// to drop cached pixels when files change underneath the store.
func (s *CropStore) Watch(onChange func(id string)) error {
	if s.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for _, dir := range []string{s.db.ImagesDir(), s.db.PreviewsDir()} {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watchLoop(onChange)
	return nil
}

func (s *CropStore) watchLoop(onChange func(id string)) {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			base := filepath.Base(event.Name)
			ext := filepath.Ext(base)
			if ext != ".png" && ext != ".jpg" && ext != ".jpeg" && ext != ".webp" {
				continue
			}
			id := strings.TrimSuffix(base, ext)
			s.log.Debug("image file changed", "file", base, "op", event.Op.String())
			onChange(id)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Error("image watcher error", "error", err)
		case <-s.done:
			return
		}
	}
}

// Close stops the filesystem watcher if one is running.
func (s *CropStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCrop(row rowScanner) (*domain.Crop, error) {
	var c domain.Crop
	err := row.Scan(&c.ID, &c.ImageID, &c.X, &c.Y, &c.Width, &c.Height,
		&c.OriginalImageWidth, &c.OriginalImageHeight, &c.Rotation, &c.Filter,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
