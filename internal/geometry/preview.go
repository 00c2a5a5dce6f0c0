package geometry

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tbourn/gridfinity-server/internal/domain"
)

// Gridfinity dimensions in millimeters.
const (
	GridPitch     = 42.0
	HeightUnit    = 7.0
	clearance     = 0.5
	baseplateBody = 5.0
	magnetExtra   = 2.5
)

// PreviewGenerator renders every item as an axis-aligned block with the
// item's outer Gridfinity envelope, centered on the origin in X/Y and resting
// on Z=0. It is deterministic and needs no CAD backend.
type PreviewGenerator struct{}

func (PreviewGenerator) GenerateBin(ctx context.Context, s domain.BinSpec) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := float64(s.Width)*GridPitch - clearance
	d := float64(s.Depth)*GridPitch - clearance
	h := float64(s.Height) * HeightUnit
	return boxSTL(fmt.Sprintf("bin_%dx%dx%d", s.Width, s.Depth, s.Height), w, d, h), nil
}

func (PreviewGenerator) GenerateBaseplate(ctx context.Context, s domain.BaseplateSpec) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := baseplateBody
	if s.HasMagnets {
		h += magnetExtra
	}
	w := float64(s.GridWidth) * GridPitch
	d := float64(s.GridDepth) * GridPitch
	return boxSTL(fmt.Sprintf("baseplate_%dx%d", s.GridWidth, s.GridDepth), w, d, h), nil
}

// boxSTL writes a closed box as 12 outward-facing triangles.
func boxSTL(name string, w, d, h float64) []byte {
	x0, x1 := -w/2, w/2
	y0, y1 := -d/2, d/2
	v := [8][3]float64{
		{x0, y0, 0}, {x1, y0, 0}, {x1, y1, 0}, {x0, y1, 0},
		{x0, y0, h}, {x1, y0, h}, {x1, y1, h}, {x0, y1, h},
	}
	faces := []struct {
		n   [3]float64
		tri [2][3]int
	}{
		{[3]float64{0, 0, -1}, [2][3]int{{0, 2, 1}, {0, 3, 2}}},
		{[3]float64{0, 0, 1}, [2][3]int{{4, 5, 6}, {4, 6, 7}}},
		{[3]float64{0, -1, 0}, [2][3]int{{0, 1, 5}, {0, 5, 4}}},
		{[3]float64{1, 0, 0}, [2][3]int{{1, 2, 6}, {1, 6, 5}}},
		{[3]float64{0, 1, 0}, [2][3]int{{2, 3, 7}, {2, 7, 6}}},
		{[3]float64{-1, 0, 0}, [2][3]int{{3, 0, 4}, {3, 4, 7}}},
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "solid %s\n", name)
	for _, f := range faces {
		for _, t := range f.tri {
			fmt.Fprintf(&b, "  facet normal %g %g %g\n    outer loop\n", f.n[0], f.n[1], f.n[2])
			for _, i := range t {
				fmt.Fprintf(&b, "      vertex %.4f %.4f %.4f\n", v[i][0], v[i][1], v[i][2])
			}
			b.WriteString("    endloop\n  endfacet\n")
		}
	}
	fmt.Fprintf(&b, "endsolid %s\n", name)
	return b.Bytes()
}
