package tryon

import "fmt"

// Garment is the closed set of supported garment kinds. New kinds are rows
// in garmentSpecs, not new types.
type Garment string

const (
	GarmentTShirt Garment = "tshirt"
	GarmentShirt  Garment = "shirt"
	GarmentKurta  Garment = "kurta"
	GarmentDress  Garment = "dress"
	GarmentHoodie Garment = "hoodie"
	GarmentJacket Garment = "jacket"
)

// garmentSpec holds the per-kind placement metadata.
type garmentSpec struct {
	// aspectRatio is garment height relative to shoulder distance.
	aspectRatio float64
	// hemFlare is hem width relative to shoulder span at the shoulders.
	// A-line cuts flare outward; fitted cuts stay near 1.
	hemFlare float64
}

var garmentSpecs = map[Garment]garmentSpec{
	GarmentTShirt: {aspectRatio: 1.6, hemFlare: 1.1},
	GarmentShirt:  {aspectRatio: 1.7, hemFlare: 1.1},
	GarmentKurta:  {aspectRatio: 2.1, hemFlare: 1.15},
	GarmentDress:  {aspectRatio: 2.4, hemFlare: 1.5},
	GarmentHoodie: {aspectRatio: 1.7, hemFlare: 1.1},
	GarmentJacket: {aspectRatio: 1.8, hemFlare: 1.1},
}

// Garments returns the supported kinds in a stable order.
func Garments() []Garment {
	return []Garment{GarmentTShirt, GarmentShirt, GarmentKurta, GarmentDress, GarmentHoodie, GarmentJacket}
}

// ParseGarment validates a caller-supplied garment string against the
// closed enum.
func ParseGarment(s string) (Garment, error) {
	g := Garment(s)
	if _, ok := garmentSpecs[g]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidGarment, s)
	}
	return g, nil
}

// AspectRatio returns the kind's height/shoulder-distance ratio.
func (g Garment) AspectRatio() float64 {
	return garmentSpecs[g].aspectRatio
}

// HemFlare returns the kind's hem width relative to shoulder-line width.
func (g Garment) HemFlare() float64 {
	return garmentSpecs[g].hemFlare
}

// Valid reports whether g is a member of the closed enum.
func (g Garment) Valid() bool {
	_, ok := garmentSpecs[g]
	return ok
}

func (g Garment) String() string { return string(g) }
