package tryon

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"sync"

	"github.com/golang/geo/r2"
)

// TemplateAnchors are the three canonical points of a garment template, in
// template pixel space. The warper maps them (plus a derived hem pair) onto
// the geometry's target quad.
type TemplateAnchors struct {
	LeftShoulder  r2.Point
	RightShoulder r2.Point
	HemCenter     r2.Point
}

// GarmentTemplate is an immutable canonical garment image with a straight
// alpha channel. Templates encode shading, not flat color: the warper tints
// multiplicatively, so highlights and folds must live in the template.
type GarmentTemplate struct {
	Garment     Garment
	Image       *image.NRGBA
	Anchors     TemplateAnchors
	AspectRatio float64
}

// TemplateStore supplies templates keyed by the closed garment enum. The
// store is an external capability; implementations must return immutable
// templates safe for concurrent reads.
type TemplateStore interface {
	Template(g Garment) (*GarmentTemplate, error)
}

// Template canvas constants. anchorSpan is the pixel distance between the
// shoulder anchors; the canvas is wider so sleeves and flare fit.
const (
	templateAnchorSpan = 300
	templateWidth      = 420
	templateShoulderY  = 48
)

// ProceduralStore synthesizes shaded garment templates in memory. It keeps
// the repo runnable and testable without asset files; production callers
// plug in a store backed by real artwork.
type ProceduralStore struct {
	mu    sync.Mutex
	cache map[Garment]*GarmentTemplate
}

// NewProceduralStore returns an empty store; templates are built lazily and
// cached per garment kind.
func NewProceduralStore() *ProceduralStore {
	return &ProceduralStore{cache: make(map[Garment]*GarmentTemplate)}
}

// Template returns the synthesized template for g.
func (s *ProceduralStore) Template(g Garment) (*GarmentTemplate, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGarment, g)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tpl, ok := s.cache[g]; ok {
		return tpl, nil
	}

	tpl := buildTemplate(g)
	s.cache[g] = tpl
	return tpl, nil
}

// buildTemplate renders the garment silhouette with a vertical shading
// gradient. Shapes follow the original asset proportions: a shoulder-to-hem
// body trapezoid plus kind-specific sleeves, hood or collar.
func buildTemplate(g Garment) *GarmentTemplate {
	w := float64(templateWidth)
	cx := w / 2
	shoulderY := float64(templateShoulderY)
	hemY := shoulderY + g.AspectRatio()*templateAnchorSpan
	height := int(math.Ceil(hemY)) + 8

	img := image.NewNRGBA(image.Rect(0, 0, templateWidth, height))

	flare := g.HemFlare()
	halfTop := float64(templateAnchorSpan) / 2
	halfHem := halfTop * flare

	body := []r2.Point{
		{X: cx - halfTop, Y: shoulderY},
		{X: cx + halfTop, Y: shoulderY},
		{X: cx + halfHem, Y: hemY},
		{X: cx - halfHem, Y: hemY},
	}

	shade := func(x, y int) color.NRGBA {
		// Bright at the shoulders fading toward the hem, with a soft
		// falloff toward the sides. Tinting scales these values, so the
		// gradient is what keeps the warped garment from looking flat.
		v := 225 - 60*float64(y)/float64(height)
		v -= 18 * math.Abs(float64(x)-cx) / cx
		lum := uint8(clamp(v, 0, 255))
		return color.NRGBA{R: lum, G: lum, B: lum, A: 0xff}
	}

	fillPolygon(img, body, shade)

	sleeveDrop := (hemY - shoulderY) * 0.45
	switch g {
	case GarmentTShirt, GarmentShirt, GarmentHoodie, GarmentJacket:
		// Short sleeves sloping out and down from the shoulder corners.
		fillPolygon(img, []r2.Point{
			{X: cx - halfTop, Y: shoulderY},
			{X: cx - halfTop - 52, Y: shoulderY + sleeveDrop*0.55},
			{X: cx - halfTop - 30, Y: shoulderY + sleeveDrop},
			{X: cx - halfTop + 14, Y: shoulderY + sleeveDrop*0.7},
		}, shade)
		fillPolygon(img, []r2.Point{
			{X: cx + halfTop, Y: shoulderY},
			{X: cx + halfTop + 52, Y: shoulderY + sleeveDrop*0.55},
			{X: cx + halfTop + 30, Y: shoulderY + sleeveDrop},
			{X: cx + halfTop - 14, Y: shoulderY + sleeveDrop*0.7},
		}, shade)
	case GarmentKurta:
		// Long narrow sleeves.
		fillPolygon(img, []r2.Point{
			{X: cx - halfTop, Y: shoulderY},
			{X: cx - halfTop - 44, Y: shoulderY + sleeveDrop},
			{X: cx - halfTop - 28, Y: shoulderY + sleeveDrop*1.9},
			{X: cx - halfTop + 10, Y: shoulderY + sleeveDrop*1.4},
		}, shade)
		fillPolygon(img, []r2.Point{
			{X: cx + halfTop, Y: shoulderY},
			{X: cx + halfTop + 44, Y: shoulderY + sleeveDrop},
			{X: cx + halfTop + 28, Y: shoulderY + sleeveDrop*1.9},
			{X: cx + halfTop - 10, Y: shoulderY + sleeveDrop*1.4},
		}, shade)
	case GarmentDress:
		// A-line only; the flare is in the body trapezoid.
	}

	if g == GarmentHoodie {
		// Hood bump above the collar line.
		fillPolygon(img, []r2.Point{
			{X: cx - halfTop*0.6, Y: shoulderY},
			{X: cx, Y: shoulderY - 34},
			{X: cx + halfTop*0.6, Y: shoulderY},
		}, shade)
	}
	if g == GarmentJacket {
		// Collar notch.
		fillPolygon(img, []r2.Point{
			{X: cx - halfTop*0.4, Y: shoulderY},
			{X: cx, Y: shoulderY - 22},
			{X: cx + halfTop*0.4, Y: shoulderY},
		}, shade)
	}

	softenAlpha(img)

	return &GarmentTemplate{
		Garment: g,
		Image:   img,
		Anchors: TemplateAnchors{
			LeftShoulder:  r2.Point{X: cx - halfTop, Y: shoulderY},
			RightShoulder: r2.Point{X: cx + halfTop, Y: shoulderY},
			HemCenter:     r2.Point{X: cx, Y: hemY},
		},
		AspectRatio: g.AspectRatio(),
	}
}

// fillPolygon rasterizes a simple polygon into img using even-odd scanline
// filling, coloring covered pixels with shade.
func fillPolygon(img *image.NRGBA, pts []r2.Point, shade func(x, y int) color.NRGBA) {
	if len(pts) < 3 {
		return
	}

	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	bounds := img.Bounds()
	y0 := int(math.Max(math.Floor(minY), float64(bounds.Min.Y)))
	y1 := int(math.Min(math.Ceil(maxY), float64(bounds.Max.Y-1)))

	for y := y0; y <= y1; y++ {
		sy := float64(y) + 0.5
		var xs []float64
		for i := range pts {
			a := pts[i]
			b := pts[(i+1)%len(pts)]
			if (a.Y <= sy) == (b.Y <= sy) {
				continue
			}
			t := (sy - a.Y) / (b.Y - a.Y)
			xs = append(xs, a.X+t*(b.X-a.X))
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := int(math.Max(math.Ceil(xs[i]-0.5), float64(bounds.Min.X)))
			x1 := int(math.Min(math.Floor(xs[i+1]-0.5), float64(bounds.Max.X-1)))
			for x := x0; x <= x1; x++ {
				img.SetNRGBA(x, y, shade(x, y))
			}
		}
	}
}

// softenAlpha runs a 3x3 box blur over the alpha channel only, taking the
// hard rasterized silhouette edge down a notch the way the original blurred
// its masks.
func softenAlpha(img *image.NRGBA) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	src := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src[y*w+x] = img.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y).A
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, n int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					sum += int(src[ny*w+nx])
					n++
				}
			}
			px := img.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			// Feather inward only: growing alpha outward would haloe
			// unshaded pixels.
			if blurred := uint8(sum / n); blurred < px.A {
				px.A = blurred
			}
			img.SetNRGBA(bounds.Min.X+x, bounds.Min.Y+y, px)
		}
	}
}
