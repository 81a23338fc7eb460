package render_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"vistacrop/internal/domain"
	"vistacrop/internal/render"
)

// fakeCropSource serves crops and bitmaps from memory, counting
// original-image fetches.
type fakeCropSource struct {
	mu            sync.Mutex
	crops         map[string]domain.Crop
	previews      map[string]image.Image
	originals     map[string]image.Image
	originalErr   error
	originalCalls int
}

func newFakeSource() *fakeCropSource {
	return &fakeCropSource{
		crops:     make(map[string]domain.Crop),
		previews:  make(map[string]image.Image),
		originals: make(map[string]image.Image),
	}
}

func (f *fakeCropSource) addCrop(c domain.Crop, preview, original image.Image) {
	f.crops[c.ID] = c
	f.previews[c.ID] = preview
	if original != nil {
		f.originals[c.ImageID] = original
	}
}

func (f *fakeCropSource) GetCrop(_ context.Context, id string) (*domain.Crop, error) {
	c, ok := f.crops[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (f *fakeCropSource) ListCrops(_ context.Context) ([]domain.Crop, error) {
	out := make([]domain.Crop, 0, len(f.crops))
	for _, c := range f.crops {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCropSource) PreviewImage(_ context.Context, id string) (image.Image, error) {
	img, ok := f.previews[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return img, nil
}

func (f *fakeCropSource) OriginalImage(_ context.Context, imageID string) (image.Image, error) {
	f.mu.Lock()
	f.originalCalls++
	f.mu.Unlock()
	if f.originalErr != nil {
		return nil, f.originalErr
	}
	img, ok := f.originals[imageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return img, nil
}

func solid(c color.RGBA, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func freeformPage(items ...domain.PlacedItem) domain.Page {
	return domain.Page{
		ID:              "p1",
		PageWidth:       200,
		PageHeight:      100,
		BackgroundColor: "#ff0000",
		Margin:          10,
		PlacedItems:     items,
	}
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func TestRenderPage_SizeAndBackground(t *testing.T) {
	r := render.New(newFakeSource(), nil)
	img, err := r.RenderPage(context.Background(), freeformPage(), domain.ModeFreeform, 1.5)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 150 {
		t.Fatalf("expected 300x150, got %v", img.Bounds())
	}
	red, g, b := rgbAt(img, 2, 2)
	if red < 250 || g > 5 || b > 5 {
		t.Errorf("expected red background, got (%d,%d,%d)", red, g, b)
	}
}

func TestRenderPage_InvalidInput(t *testing.T) {
	r := render.New(newFakeSource(), nil)
	if _, err := r.RenderPage(context.Background(), freeformPage(), domain.ModeFreeform, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero scale, got %v", err)
	}
	bad := freeformPage()
	bad.PageWidth = 0
	if _, err := r.RenderPage(context.Background(), bad, domain.ModeFreeform, 1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero width, got %v", err)
	}
}

func TestRenderPage_DrawsItemContent(t *testing.T) {
	src := newFakeSource()
	src.addCrop(domain.Crop{ID: "c1", Width: 40, Height: 40, ImageID: "i1"},
		solid(color.RGBA{B: 255, A: 255}, 40, 40), nil)

	item := domain.PlacedItem{
		ID: "it1", CropID: "c1",
		X: 50, Y: 10, Width: 80, Height: 80,
		FrameShape: domain.ShapeRectangle,
	}
	r := render.New(src, nil)
	img, err := r.RenderPage(context.Background(), freeformPage(item), domain.ModeFreeform, 1)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// Item center should be the crop's blue, not the red background.
	_, _, b := rgbAt(img, 90, 50)
	if b < 200 {
		t.Errorf("expected blue item content at (90,50), got b=%d", b)
	}
	// Outside the item stays background red.
	red, _, _ := rgbAt(img, 5, 5)
	if red < 250 {
		t.Errorf("expected red background outside item, got r=%d", red)
	}
}

func TestRenderPage_DanglingCropRendersPlaceholder(t *testing.T) {
	item := domain.PlacedItem{
		ID: "it1", CropID: "gone",
		X: 10, Y: 10, Width: 50, Height: 50,
		FrameShape: domain.ShapeRectangle,
	}
	r := render.New(newFakeSource(), nil)
	img, err := r.RenderPage(context.Background(), freeformPage(item), domain.ModeFreeform, 1)
	if err != nil {
		t.Fatalf("dangling crop must not fail the render: %v", err)
	}
	// Placeholder gray inside the box, not the red background.
	red, g, b := rgbAt(img, 35, 35)
	if red < 200 || g < 200 || b < 200 {
		t.Errorf("expected light placeholder at (35,35), got (%d,%d,%d)", red, g, b)
	}
}

func TestRenderPage_RotatedFetchFailureFallsBack(t *testing.T) {
	src := newFakeSource()
	rot := 30.0
	src.addCrop(domain.Crop{ID: "c1", X: 5, Y: 5, Width: 40, Height: 40,
		OriginalImageWidth: 100, OriginalImageHeight: 100, ImageID: "i1"},
		solid(color.RGBA{G: 255, A: 255}, 40, 40), nil)
	src.originalErr = errors.New("network down")

	item := domain.PlacedItem{
		ID: "it1", CropID: "c1", Rotation: &rot,
		X: 40, Y: 10, Width: 80, Height: 80,
		FrameShape: domain.ShapeRectangle,
	}
	r := render.New(src, nil)
	img, err := r.RenderPage(context.Background(), freeformPage(item), domain.ModeFreeform, 1)
	if err != nil {
		t.Fatalf("fetch failure must degrade, not fail: %v", err)
	}
	if src.originalCalls != 1 {
		t.Fatalf("expected one original fetch attempt, got %d", src.originalCalls)
	}
	// Fallback draws the unrotated preview: center is green.
	_, g, _ := rgbAt(img, 80, 50)
	if g < 200 {
		t.Errorf("expected preview fallback at center, got g=%d", g)
	}
}

func TestRenderPage_OriginalFetchedOncePerImage(t *testing.T) {
	src := newFakeSource()
	rot := 15.0
	src.addCrop(domain.Crop{ID: "c1", X: 0, Y: 0, Width: 50, Height: 50,
		OriginalImageWidth: 100, OriginalImageHeight: 100, ImageID: "i1"},
		solid(color.RGBA{G: 255, A: 255}, 50, 50),
		solid(color.RGBA{B: 255, A: 255}, 100, 100))

	item := domain.PlacedItem{
		ID: "it1", CropID: "c1", Rotation: &rot,
		X: 10, Y: 10, Width: 60, Height: 60,
		FrameShape: domain.ShapeRectangle,
	}
	r := render.New(src, nil)
	ctx := context.Background()
	page := freeformPage(item)
	for i := 0; i < 3; i++ {
		if _, err := r.RenderPage(ctx, page, domain.ModeFreeform, 1); err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
	}
	if src.originalCalls != 1 {
		t.Fatalf("expected the original cached after one fetch, got %d", src.originalCalls)
	}
	r.InvalidateOriginal("i1")
	if _, err := r.RenderPage(ctx, page, domain.ModeFreeform, 1); err != nil {
		t.Fatalf("render after invalidate: %v", err)
	}
	if src.originalCalls != 2 {
		t.Fatalf("expected re-fetch after invalidation, got %d", src.originalCalls)
	}
}

func TestRenderPage_PanelMode(t *testing.T) {
	src := newFakeSource()
	src.addCrop(domain.Crop{ID: "c1", Width: 50, Height: 50, ImageID: "i1"},
		solid(color.RGBA{B: 255, A: 255}, 50, 50), nil)

	cropID := "c1"
	page := domain.Page{
		ID:              "p1",
		PageWidth:       400,
		PageHeight:      400,
		BackgroundColor: "#ffffff",
		Margin:          20,
		LayoutID:        "2-horizontal",
		Assignments: []domain.PanelAssignment{
			{CropID: &cropID, Zoom: 1},
			{Zoom: 1},
		},
	}
	r := render.New(src, nil)
	img, err := r.RenderPage(context.Background(), page, domain.ModePanels, 1)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// Panel 0 covers (20,20)-(380,192.8); its center shows the crop.
	_, _, b := rgbAt(img, 200, 100)
	if b < 200 {
		t.Errorf("expected crop in panel 0, got b=%d", b)
	}
	// Panel 1 is unassigned: white background.
	red, g, b2 := rgbAt(img, 200, 300)
	if red < 250 || g < 250 || b2 < 250 {
		t.Errorf("expected white in empty panel, got (%d,%d,%d)", red, g, b2)
	}
}

func TestThumbnail_NeverUpscalesAndSkipsEmpty(t *testing.T) {
	r := render.New(newFakeSource(), nil)
	ctx := context.Background()

	// Empty page → nil thumbnail.
	img, err := r.Thumbnail(ctx, freeformPage(), domain.ModeFreeform, 128, 128)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if img != nil {
		t.Fatal("expected nil thumbnail for an empty page")
	}

	item := domain.PlacedItem{ID: "x", CropID: "gone", X: 0, Y: 0, Width: 10, Height: 10}
	// 200x100 page into 128x128: scale 0.64 → 128x64.
	img, err = r.Thumbnail(ctx, freeformPage(item), domain.ModeFreeform, 128, 128)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if img.Bounds().Dx() != 128 || img.Bounds().Dy() != 64 {
		t.Errorf("expected 128x64 thumbnail, got %v", img.Bounds())
	}

	// Page smaller than the box: scale capped at 1.
	img, err = r.Thumbnail(ctx, freeformPage(item), domain.ModeFreeform, 1000, 1000)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Errorf("thumbnail must not upscale, got %v", img.Bounds())
	}
}

func TestExportDocument_PageOrder(t *testing.T) {
	r := render.New(newFakeSource(), nil)
	doc := domain.Document{
		ID:   "d1",
		Mode: domain.ModeFreeform,
		Pages: []domain.Page{
			freeformPage(),
			freeformPage(),
			freeformPage(),
		},
	}
	var order []int
	err := r.ExportDocument(context.Background(), doc, 0.5, func(i int, _ domain.Page, img image.Image) error {
		if img.Bounds().Dx() != 100 {
			t.Errorf("page %d: expected scaled width 100, got %d", i, img.Bounds().Dx())
		}
		order = append(order, i)
		return nil
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("expected pages in order, got %v", order)
	}
}

func TestExportDocument_CallbackErrorStops(t *testing.T) {
	r := render.New(newFakeSource(), nil)
	doc := domain.Document{
		ID:    "d1",
		Mode:  domain.ModeFreeform,
		Pages: []domain.Page{freeformPage(), freeformPage()},
	}
	boom := errors.New("disk full")
	calls := 0
	err := r.ExportDocument(context.Background(), doc, 1, func(int, domain.Page, image.Image) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected export to stop after the first failure, got %d calls", calls)
	}
}
