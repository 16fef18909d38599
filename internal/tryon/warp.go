package tryon

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// homography is a 3x3 projective transform, row-major, h22 normalized to 1.
type homography [9]float64

// computeHomography solves for the transform mapping src[i] -> dst[i] via
// the 8x8 direct linear system (unknowns h00..h21, h22 = 1).
func computeHomography(src, dst [4]r2.Point) (homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i

		// x' = (h00 X + h01 Y + h02) / (h20 X + h21 Y + 1)
		a.Set(r, 0, X)
		a.Set(r, 1, Y)
		a.Set(r, 2, 1)
		a.Set(r, 6, -X*x)
		a.Set(r, 7, -Y*x)
		b.SetVec(r, x)

		// y' = (h10 X + h11 Y + h12) / (h20 X + h21 Y + 1)
		a.Set(r+1, 3, X)
		a.Set(r+1, 4, Y)
		a.Set(r+1, 5, 1)
		a.Set(r+1, 6, -X*y)
		a.Set(r+1, 7, -Y*y)
		b.SetVec(r+1, y)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return homography{}, fmt.Errorf("%w: singular correspondence", ErrDegenerateGeometry)
	}

	return homography{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	}, nil
}

// apply maps a point through the homography.
func (h homography) apply(x, y float64) (float64, float64) {
	denom := h[6]*x + h[7]*y + h[8]
	if denom == 0 {
		return math.Inf(1), math.Inf(1)
	}
	sx := (h[0]*x + h[1]*y + h[2]) / denom
	sy := (h[3]*x + h[4]*y + h[5]) / denom
	return sx, sy
}

// sourceQuad derives the template-space quad matching the target quad's
// corner order. The hem corners come from the hem-center anchor pushed
// sideways by half the anchor span, mirroring how the target hem extends
// from the geometry's hem center.
func sourceQuad(anchors TemplateAnchors) [4]r2.Point {
	half := anchors.RightShoulder.Sub(anchors.LeftShoulder).Mul(0.5)
	return [4]r2.Point{
		anchors.LeftShoulder,
		anchors.RightShoulder,
		anchors.HemCenter.Add(half),
		anchors.HemCenter.Sub(half),
	}
}

// WarpGarment perspective-transforms the template onto the geometry's
// target quad, returning a frame-sized NRGBA overlay with straight alpha.
// Pixels outside the warped quad are fully transparent. The tint scales the
// RGB channels multiplicatively and leaves alpha untouched, so the shading
// baked into the template survives recoloring.
//
// The function is deterministic and does no IO.
func WarpGarment(tpl *GarmentTemplate, geom Geometry, tint color.NRGBA, frameW, frameH int) (*image.NRGBA, error) {
	if tpl == nil || tpl.Image == nil {
		return nil, fmt.Errorf("%w: nil template", ErrInvalidGarment)
	}
	if frameW <= 0 || frameH <= 0 {
		return nil, fmt.Errorf("%w: empty output frame %dx%d", ErrMalformedFrame, frameW, frameH)
	}

	// Inverse mapping: solve frame -> template so each output pixel
	// samples exactly one source location.
	src := sourceQuad(tpl.Anchors)
	inv, err := computeHomography(geom.Quad.Points(), src)
	if err != nil {
		return nil, err
	}
	fwd, err := computeHomography(src, geom.Quad.Points())
	if err != nil {
		return nil, err
	}

	out := image.NewNRGBA(image.Rect(0, 0, frameW, frameH))

	// Sleeves and flared hems reach outside the anchor quad, so the scan
	// region is the forward image of the whole template canvas.
	x0, y0, x1, y1 := warpedBounds(fwd, tpl.Image.Bounds(), frameW, frameH)
	srcBounds := tpl.Image.Bounds()

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			sx, sy := inv.apply(float64(x)+0.5, float64(y)+0.5)
			px, ok := sampleBilinear(tpl.Image, srcBounds, sx, sy)
			if !ok || px.A == 0 {
				continue
			}
			out.SetNRGBA(x, y, color.NRGBA{
				R: tintChannel(px.R, tint.R),
				G: tintChannel(px.G, tint.G),
				B: tintChannel(px.B, tint.B),
				A: px.A,
			})
		}
	}

	return out, nil
}

// warpedBounds maps the template canvas corners through the forward
// transform and returns their integer bounding box clipped to the frame,
// padded one pixel for the feathered edge.
func warpedBounds(fwd homography, src image.Rectangle, frameW, frameH int) (x0, y0, x1, y1 int) {
	corners := [4][2]float64{
		{float64(src.Min.X), float64(src.Min.Y)},
		{float64(src.Max.X), float64(src.Min.Y)},
		{float64(src.Max.X), float64(src.Max.Y)},
		{float64(src.Min.X), float64(src.Max.Y)},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		px, py := fwd.apply(c[0], c[1])
		minX = math.Min(minX, px)
		maxX = math.Max(maxX, px)
		minY = math.Min(minY, py)
		maxY = math.Max(maxY, py)
	}
	x0 = int(math.Floor(minX)) - 1
	y0 = int(math.Floor(minY)) - 1
	x1 = int(math.Ceil(maxX)) + 1
	y1 = int(math.Ceil(maxY)) + 1
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > frameW-1 {
		x1 = frameW - 1
	}
	if y1 > frameH-1 {
		y1 = frameH - 1
	}
	return x0, y0, x1, y1
}

// sampleBilinear reads the source image at a fractional position. ok is
// false when the position falls outside the source bounds.
func sampleBilinear(img *image.NRGBA, bounds image.Rectangle, x, y float64) (color.NRGBA, bool) {
	// Convert from pixel-center coordinates.
	x -= 0.5
	y -= 0.5
	fx := math.Floor(x)
	fy := math.Floor(y)
	ix, iy := int(fx), int(fy)

	if ix < bounds.Min.X-1 || iy < bounds.Min.Y-1 || ix >= bounds.Max.X || iy >= bounds.Max.Y {
		return color.NRGBA{}, false
	}

	tx := x - fx
	ty := y - fy

	p00 := nrgbaAtOrZero(img, bounds, ix, iy)
	p10 := nrgbaAtOrZero(img, bounds, ix+1, iy)
	p01 := nrgbaAtOrZero(img, bounds, ix, iy+1)
	p11 := nrgbaAtOrZero(img, bounds, ix+1, iy+1)

	lerp2 := func(a, b, c, d uint8) uint8 {
		top := float64(a)*(1-tx) + float64(b)*tx
		bot := float64(c)*(1-tx) + float64(d)*tx
		return uint8(math.Round(top*(1-ty) + bot*ty))
	}

	return color.NRGBA{
		R: lerp2(p00.R, p10.R, p01.R, p11.R),
		G: lerp2(p00.G, p10.G, p01.G, p11.G),
		B: lerp2(p00.B, p10.B, p01.B, p11.B),
		A: lerp2(p00.A, p10.A, p01.A, p11.A),
	}, true
}

func nrgbaAtOrZero(img *image.NRGBA, bounds image.Rectangle, x, y int) color.NRGBA {
	if x < bounds.Min.X || y < bounds.Min.Y || x >= bounds.Max.X || y >= bounds.Max.Y {
		return color.NRGBA{}
	}
	return img.NRGBAAt(x, y)
}
