// Package scene assembles generated meshes into build-plate documents and
// packages them as 3MF or plain ZIP archives.
//
// An Assembler accepts items in plate order. Items sharing a geometry key are
// indexed once and referenced by every placement, so a plate with forty
// identical bins embeds a single mesh.
package scene

import (
	"fmt"
	"math"

	"github.com/tbourn/gridfinity-server/internal/mesh"
)

// Placement positions an item center on the plate in millimeters, rotated
// counter-clockwise about Z by Rotation degrees.
type Placement struct {
	X, Y     float64
	Rotation float64
}

// Resource is a unique mesh embedded in the document. IDs start at 1 and
// follow first-use order.
type Resource struct {
	ID   int
	Key  string
	Mesh *mesh.IndexedMesh
}

// PlacedItem references a resource through its object id and carries the
// row-major 3x4 affine transform 3MF expects.
type PlacedItem struct {
	ObjectID  int
	Key       string
	Transform [12]float64
}

// Document is an immutable assembled scene.
type Document struct {
	Resources  []Resource
	Placements []PlacedItem
}

// Assembler builds a Document. It is not safe for concurrent use; each plate
// request owns its own assembler.
type Assembler struct {
	ids        map[string]int
	resources  []Resource
	placements []PlacedItem
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{ids: make(map[string]int)}
}

// Add places one item. raw is only parsed the first time key is seen.
func (a *Assembler) Add(key string, raw []byte, p Placement) error {
	if key == "" {
		return fmt.Errorf("scene: empty resource key")
	}
	id, ok := a.ids[key]
	if !ok {
		m, err := mesh.Index(raw)
		if err != nil {
			return fmt.Errorf("scene: index %s: %w", key, err)
		}
		id = len(a.resources) + 1
		a.ids[key] = id
		a.resources = append(a.resources, Resource{ID: id, Key: key, Mesh: m})
	}
	a.placements = append(a.placements, PlacedItem{
		ObjectID:  id,
		Key:       key,
		Transform: Transform(p.X, p.Y, p.Rotation),
	})
	return nil
}

// Has reports whether key already has a resource, letting callers skip
// fetching bytes for repeated geometry.
func (a *Assembler) Has(key string) bool {
	_, ok := a.ids[key]
	return ok
}

// Document returns the assembled scene. Slices are copied so later Adds do
// not affect a returned document.
func (a *Assembler) Document() *Document {
	return &Document{
		Resources:  append([]Resource(nil), a.resources...),
		Placements: append([]PlacedItem(nil), a.placements...),
	}
}

// Transform returns the 3MF transform for a rotation of deg degrees about Z
// followed by a translation to (x, y, 0). Cosine and sine are rounded to six
// decimals so right angles produce exact 0/1 entries.
func Transform(x, y, deg float64) [12]float64 {
	theta := deg * math.Pi / 180
	c := round6(math.Cos(theta))
	s := round6(math.Sin(theta))
	return [12]float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
		x, y, 0,
	}
}

func round6(v float64) float64 {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		return 0 // normalize -0
	}
	return r
}
