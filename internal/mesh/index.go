// Package mesh – STL indexer
//
// This file converts ASCII STL text into an indexed triangle mesh suitable for
// embedding in a 3MF scene. Every three consecutive "vertex" records form one
// triangle; coordinates are rounded to four decimals and deduplicated so that
// the first occurrence of a position receives the next free index.
//
// Non-vertex lines (facet normals, loop markers, solid headers) are ignored.
package mesh

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Precision is the number of decimals coordinates are rounded to before
// deduplication.
const Precision = 4

var scale = math.Pow10(Precision)

// maxLine bounds a single STL line; CAD exporters occasionally emit very long
// header comments.
const maxLine = 1 << 20

// Vertex is a position in millimeters.
type Vertex struct {
	X, Y, Z float64
}

// Triangle holds three indices into IndexedMesh.Vertices.
type Triangle [3]int

// IndexedMesh is a deduplicated triangle mesh. Every triangle index is in
// range of Vertices.
type IndexedMesh struct {
	Vertices  []Vertex
	Triangles []Triangle
}

// ParseError reports malformed STL input. Line is 1-based; zero means the
// failure is not tied to a specific line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("stl: line %d: %s", e.Line, e.Msg)
	}
	return "stl: " + e.Msg
}

// key is a vertex position in fixed-point units. Rounding to integers makes
// -0.0 and 0.0 compare equal.
type key [3]int64

func quantize(v float64) int64 { return int64(math.Round(v * scale)) }

// Index parses ASCII STL and returns the deduplicated mesh.
func Index(raw []byte) (*IndexedMesh, error) {
	m := &IndexedMesh{}
	seen := make(map[key]int)
	var tri Triangle
	n := 0
	lastVertex := 0

	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] != "vertex" {
			continue
		}
		if len(fields) != 4 {
			return nil, &ParseError{Line: line, Msg: fmt.Sprintf("vertex needs 3 coordinates, got %d", len(fields)-1)}
		}
		var q key
		for i := 0; i < 3; i++ {
			f, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, &ParseError{Line: line, Msg: fmt.Sprintf("bad coordinate %q", fields[i+1])}
			}
			q[i] = quantize(f)
		}
		idx, ok := seen[q]
		if !ok {
			idx = len(m.Vertices)
			seen[q] = idx
			m.Vertices = append(m.Vertices, Vertex{
				X: float64(q[0]) / scale,
				Y: float64(q[1]) / scale,
				Z: float64(q[2]) / scale,
			})
		}
		tri[n%3] = idx
		n++
		lastVertex = line
		if n%3 == 0 {
			m.Triangles = append(m.Triangles, tri)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Line: line + 1, Msg: err.Error()}
	}
	if n%3 != 0 {
		return nil, &ParseError{Line: lastVertex, Msg: fmt.Sprintf("vertex count %d is not a multiple of 3", n)}
	}
	return m, nil
}
