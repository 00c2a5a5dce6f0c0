// Package geometry adapts solid-modeling backends to the server.
//
// A Generator turns one bin or baseplate spec into ASCII STL bytes. The
// server treats generation as an opaque, possibly slow, possibly failing
// operation: it never inspects geometry beyond indexing it for 3MF scenes.
//
// Two implementations ship:
//
//   - CommandGenerator runs an external CAD program per request, passing the
//     spec as JSON on stdin and reading ASCII STL from stdout.
//   - PreviewGenerator emits a Gridfinity-sized block without any CAD
//     dependency, for development and tests.
package geometry

import (
	"context"
	"fmt"

	"github.com/tbourn/gridfinity-server/internal/domain"
)

// Generator produces STL for bins and baseplates. Implementations must honor
// ctx cancellation and be safe for concurrent use.
type Generator interface {
	GenerateBin(ctx context.Context, s domain.BinSpec) ([]byte, error)
	GenerateBaseplate(ctx context.Context, s domain.BaseplateSpec) ([]byte, error)
}

// GenerationError reports a backend failure. Msg is safe to show to clients;
// Detail (such as captured stderr) is for logs only.
type GenerationError struct {
	Kind   domain.Kind
	Msg    string
	Detail string
	Err    error
}

func (e *GenerationError) Error() string {
	s := fmt.Sprintf("generate %s: %s", e.Kind, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PublicMessage is the failure detail exposed to API clients.
func (e *GenerationError) PublicMessage() string {
	return fmt.Sprintf("%s generation failed: %s", e.Kind, e.Msg)
}
