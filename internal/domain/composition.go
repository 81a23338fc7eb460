package domain

import "time"

// CompositionMode selects how a page arranges its crops.
type CompositionMode string

const (
	ModePanels   CompositionMode = "panels"
	ModeFreeform CompositionMode = "freeform"
)

type FrameShape string

const (
	ShapeRectangle     FrameShape = "rectangle"
	ShapeDiamond       FrameShape = "diamond"
	ShapePentagon      FrameShape = "pentagon"
	ShapeHexagon       FrameShape = "hexagon"
	ShapeTrapezoid     FrameShape = "trapezoid"
	ShapeParallelogram FrameShape = "parallelogram"
)

type BorderStyle string

const (
	BorderManga  BorderStyle = "manga"
	BorderSolid  BorderStyle = "solid"
	BorderDashed BorderStyle = "dashed"
	BorderNone   BorderStyle = "none"
)

// Point is a 2D coordinate. CustomPoints use item-local unit space
// relative to the box size recorded at edit time.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlacedItem is one crop instance positioned on a freeform page.
// CropID is a weak reference: the crop may have been deleted, in which
// case the item renders as an empty placeholder.
type PlacedItem struct {
	ID           string      `json:"id"`
	CropID       string      `json:"cropId"`
	X            float64     `json:"x"`
	Y            float64     `json:"y"`
	Width        float64     `json:"width"`
	Height       float64     `json:"height"`
	Rotation     *float64    `json:"rotation,omitempty"` // degrees; nil means "use the crop's rotation"
	FrameShape   FrameShape  `json:"frameShape"`
	CustomPoints []Point     `json:"customPoints,omitempty"` // overrides FrameShape when present (>= 3 points)
	BorderColor  string      `json:"borderColor"`
	BorderWidth  float64     `json:"borderWidth"`
	BorderStyle  BorderStyle `json:"borderStyle"`
}

// Clone returns a deep copy of the item.
func (it PlacedItem) Clone() PlacedItem {
	out := it
	if it.Rotation != nil {
		r := *it.Rotation
		out.Rotation = &r
	}
	if it.CustomPoints != nil {
		out.CustomPoints = append([]Point(nil), it.CustomPoints...)
	}
	return out
}

// ClonePlacedItems deep-copies a placed-item slice. Used for history
// snapshots and render-time state capture.
func ClonePlacedItems(items []PlacedItem) []PlacedItem {
	out := make([]PlacedItem, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

// PanelAssignment binds a crop (plus pan/zoom) to one slot of a preset
// grid layout. Assignments are a dense slice aligned positionally with
// the layout's panel list.
type PanelAssignment struct {
	CropID  *string `json:"cropId"`
	Zoom    float64 `json:"zoom"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// EmptyAssignment is the zero slot: no crop, neutral pan/zoom.
func EmptyAssignment() PanelAssignment {
	return PanelAssignment{Zoom: 1}
}

// Page is one output canvas with its own size, background, and either
// panel assignments or placed items depending on the document mode.
type Page struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	PagePreset      string            `json:"pagePreset"`
	PageWidth       float64           `json:"pageWidth"`
	PageHeight      float64           `json:"pageHeight"`
	BackgroundColor string            `json:"backgroundColor"`
	Margin          float64           `json:"margin"`
	LayoutID        string            `json:"layoutId"`
	Assignments     []PanelAssignment `json:"assignments"`
	PlacedItems     []PlacedItem      `json:"placedItems"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy of the page, keeping all ids.
func (p Page) Clone() Page {
	out := p
	out.PlacedItems = ClonePlacedItems(p.PlacedItems)
	if p.Assignments != nil {
		out.Assignments = append([]PanelAssignment(nil), p.Assignments...)
		for i := range out.Assignments {
			if p.Assignments[i].CropID != nil {
				id := *p.Assignments[i].CropID
				out.Assignments[i].CropID = &id
			}
		}
	}
	return out
}

// Document is the full saved unit of work: mode plus all pages.
// Invariant: len(Pages) >= 1.
type Document struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Mode      CompositionMode `json:"mode"`
	Pages     []Page          `json:"pages"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	out.Pages = make([]Page, len(d.Pages))
	for i := range d.Pages {
		out.Pages[i] = d.Pages[i].Clone()
	}
	return out
}

// CompositionMeta is the listing row for saved compositions.
type CompositionMeta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mode      string    `json:"mode"`
	ThumbPath string    `json:"thumbPath"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CompositionStore persists composition documents.
type CompositionStore interface {
	CreateComposition(doc *Document) error
	GetComposition(id string) (*Document, error)
	SaveComposition(doc *Document) error
	ListCompositions() ([]CompositionMeta, error)
	DeleteComposition(id string) error
}
