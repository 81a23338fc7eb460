package render

import (
	"image"
	"image/draw"
	"strconv"
	"strings"
)

// filterFunc is one parsed entry of a CSS-style filter list.
type filterFunc struct {
	name  string
	value float64
}

// ApplyFilter applies a crop's CSS-equivalent filter list (for example
// "grayscale(1) contrast(1.2)") to an image. Unknown functions are
// ignored; an empty or "none" filter returns the input untouched.
func ApplyFilter(img image.Image, filter string) image.Image {
	fns := parseFilter(filter)
	if len(fns) == 0 {
		return img
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	for _, fn := range fns {
		applyFilterFunc(dst, fn)
	}
	return dst
}

func parseFilter(filter string) []filterFunc {
	filter = strings.TrimSpace(filter)
	if filter == "" || filter == "none" {
		return nil
	}
	var out []filterFunc
	for _, part := range strings.Fields(filter) {
		open := strings.IndexByte(part, '(')
		end := strings.IndexByte(part, ')')
		if open < 1 || end <= open {
			continue
		}
		name := strings.ToLower(part[:open])
		raw := strings.TrimSpace(part[open+1 : end])
		val := 1.0
		if raw != "" {
			if strings.HasSuffix(raw, "%") {
				if f, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64); err == nil {
					val = f / 100
				}
			} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
				val = f
			}
		}
		out = append(out, filterFunc{name: name, value: val})
	}
	return out
}

func applyFilterFunc(img *image.RGBA, fn filterFunc) {
	switch fn.name {
	case "grayscale":
		mapPixels(img, func(r, g, b float64) (float64, float64, float64) {
			l := 0.2126*r + 0.7152*g + 0.0722*b
			return lerp(r, l, fn.value), lerp(g, l, fn.value), lerp(b, l, fn.value)
		})
	case "sepia":
		mapPixels(img, func(r, g, b float64) (float64, float64, float64) {
			sr := 0.393*r + 0.769*g + 0.189*b
			sg := 0.349*r + 0.686*g + 0.168*b
			sb := 0.272*r + 0.534*g + 0.131*b
			return lerp(r, sr, fn.value), lerp(g, sg, fn.value), lerp(b, sb, fn.value)
		})
	case "invert":
		mapPixels(img, func(r, g, b float64) (float64, float64, float64) {
			return lerp(r, 255-r, fn.value), lerp(g, 255-g, fn.value), lerp(b, 255-b, fn.value)
		})
	case "brightness":
		mapPixels(img, func(r, g, b float64) (float64, float64, float64) {
			return r * fn.value, g * fn.value, b * fn.value
		})
	case "contrast":
		mapPixels(img, func(r, g, b float64) (float64, float64, float64) {
			return (r-128)*fn.value + 128, (g-128)*fn.value + 128, (b-128)*fn.value + 128
		})
	case "saturate":
		mapPixels(img, func(r, g, b float64) (float64, float64, float64) {
			l := 0.2126*r + 0.7152*g + 0.0722*b
			return lerp(l, r, fn.value), lerp(l, g, fn.value), lerp(l, b, fn.value)
		})
	}
}

func mapPixels(img *image.RGBA, f func(r, g, b float64) (float64, float64, float64)) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			r, g, bl := float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
			nr, ng, nb := f(r, g, bl)
			img.Pix[i] = clamp8(nr)
			img.Pix[i+1] = clamp8(ng)
			img.Pix[i+2] = clamp8(nb)
		}
	}
}

func lerp(a, b, t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return a + (b-a)*t
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
