// Package services – GenerationService
//
// GenerationService turns validated generation requests into downloadable
// artifacts. Single bins and baseplates go through the artifact cache, so
// identical requests share one generation. Plates are assembled per request
// from cached item geometry: a ZIP holds one STL per item, a 3MF holds one
// mesh per distinct item and one placement per item.
//
// The same service backs the synchronous endpoints and, through Lookup and
// Run, the asynchronous job scheduler.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the request kind and cache key where applicable.
package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/gridfinity-server/internal/cache"
	"github.com/tbourn/gridfinity-server/internal/domain"
	"github.com/tbourn/gridfinity-server/internal/geometry"
	"github.com/tbourn/gridfinity-server/internal/scene"
)

const tracerName = "services/GenerationService"

// ArtifactCache is the cache contract GenerationService relies on.
type ArtifactCache interface {
	Get(ctx context.Context, key domain.CacheKey) (cache.Entry, bool)
	GetOrCreate(ctx context.Context, key domain.CacheKey, fn cache.GenerateFunc) (cache.Entry, error)
}

// GenerationService produces STL, ZIP and 3MF artifacts.
type GenerationService struct {
	Cache     ArtifactCache
	Generator geometry.Generator

	// PlateConcurrency bounds how many distinct plate items generate at
	// once within one plate request.
	PlateConcurrency int
}

// NewGenerationService constructs a GenerationService with defaults.
func NewGenerationService(c ArtifactCache, g geometry.Generator) *GenerationService {
	return &GenerationService{Cache: c, Generator: g, PlateConcurrency: 2}
}

// Run validates req and produces its artifact.
func (s *GenerationService) Run(ctx context.Context, req domain.GenerationRequest) (domain.Artifact, error) {
	if err := req.Validate(); err != nil {
		return domain.Artifact{}, err
	}
	switch req.Kind {
	case domain.KindBin:
		return s.Bin(ctx, *req.Bin)
	case domain.KindBaseplate:
		return s.Baseplate(ctx, *req.Baseplate)
	case domain.KindPlate:
		return s.PlateZip(ctx, *req.Plate)
	case domain.KindPlate3MF:
		return s.Plate3MF(ctx, *req.Plate3MF)
	}
	return domain.Artifact{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, req.Kind)
}

// Lookup returns the artifact of a cacheable request when it is already
// cached. It never generates.
func (s *GenerationService) Lookup(ctx context.Context, req domain.GenerationRequest) (domain.Artifact, bool) {
	key := domain.DeriveKey(req)
	if key == "" {
		return domain.Artifact{}, false
	}
	e, ok := s.Cache.Get(ctx, key)
	if !ok {
		return domain.Artifact{}, false
	}
	var name string
	switch req.Kind {
	case domain.KindBin:
		name = domain.BinFilename(*req.Bin, -1)
	case domain.KindBaseplate:
		name = domain.BaseplateFilename(*req.Baseplate)
	}
	return domain.Artifact{Data: e.Data, Filename: name, ContentType: e.ContentType}, true
}

// Bin returns the STL of a single bin.
func (s *GenerationService) Bin(ctx context.Context, b domain.BinSpec) (domain.Artifact, error) {
	key := domain.BinKey(b)
	ctx, span := s.start(ctx, "Bin", domain.KindBin, key)
	defer span.End()

	e, err := s.binSTL(ctx, key, b)
	if err != nil {
		recordErr(span, err)
		return domain.Artifact{}, err
	}
	return domain.Artifact{Data: e.Data, Filename: domain.BinFilename(b, -1), ContentType: domain.ContentTypeSTL}, nil
}

// Baseplate returns the STL of a single baseplate.
func (s *GenerationService) Baseplate(ctx context.Context, b domain.BaseplateSpec) (domain.Artifact, error) {
	key := domain.BaseplateKey(b)
	ctx, span := s.start(ctx, "Baseplate", domain.KindBaseplate, key)
	defer span.End()

	e, err := s.baseplateSTL(ctx, key, b)
	if err != nil {
		recordErr(span, err)
		return domain.Artifact{}, err
	}
	return domain.Artifact{Data: e.Data, Filename: domain.BaseplateFilename(b), ContentType: domain.ContentTypeSTL}, nil
}

// PlateZip returns a ZIP archive with one STL per item that carries data.
// Bin entries are suffixed with their item index.
func (s *GenerationService) PlateZip(ctx context.Context, p domain.PlateSpec) (domain.Artifact, error) {
	ctx, span := s.start(ctx, "PlateZip", domain.KindPlate, "")
	defer span.End()
	span.SetAttributes(attribute.Int("plate.items", len(p.Items)))

	refs := make([]itemRef, 0, len(p.Items))
	for _, it := range p.Items {
		if it.HasData() {
			refs = append(refs, itemRef{bin: it.Bin, baseplate: it.Baseplate})
		} else {
			refs = append(refs, itemRef{})
		}
	}
	stls, err := s.fetch(ctx, refs)
	if err != nil {
		recordErr(span, err)
		return domain.Artifact{}, err
	}

	files := make([]scene.File, 0, len(p.Items))
	used := make(map[string]bool, len(p.Items))
	for i, it := range p.Items {
		var name string
		switch {
		case it.Bin != nil:
			name = domain.BinFilename(*it.Bin, i)
		case it.Baseplate != nil:
			name = domain.BaseplateFilename(*it.Baseplate)
		default:
			continue
		}
		if used[name] {
			name = fmt.Sprintf("%s-%d.stl", strings.TrimSuffix(name, ".stl"), i)
		}
		used[name] = true
		files = append(files, scene.File{Name: name, Data: stls[refs[i].key()].Data})
	}

	var buf bytes.Buffer
	if err := scene.WriteZip(&buf, files); err != nil {
		recordErr(span, err)
		return domain.Artifact{}, err
	}
	return domain.Artifact{Data: buf.Bytes(), Filename: domain.PlateFilename(p.Name, "zip"), ContentType: domain.ContentTypeZIP}, nil
}

// Plate3MF returns a 3MF scene with every item placed on the build plate.
func (s *GenerationService) Plate3MF(ctx context.Context, p domain.Plate3MFSpec) (domain.Artifact, error) {
	ctx, span := s.start(ctx, "Plate3MF", domain.KindPlate3MF, "")
	defer span.End()
	span.SetAttributes(attribute.Int("plate.items", len(p.Items)))

	refs := make([]itemRef, len(p.Items))
	for i, it := range p.Items {
		refs[i] = itemRef{bin: it.Bin, baseplate: it.Baseplate}
	}
	stls, err := s.fetch(ctx, refs)
	if err != nil {
		recordErr(span, err)
		return domain.Artifact{}, err
	}

	asm := scene.NewAssembler()
	for i, it := range p.Items {
		key := refs[i].key()
		if key == "" {
			continue
		}
		var raw []byte
		if !asm.Has(string(key)) {
			raw = stls[key].Data
		}
		if err := asm.Add(string(key), raw, scene.Placement{X: it.XMm, Y: it.YMm, Rotation: it.Rotation}); err != nil {
			recordErr(span, err)
			return domain.Artifact{}, err
		}
	}
	doc := asm.Document()
	span.SetAttributes(attribute.Int("plate.resources", len(doc.Resources)))

	var buf bytes.Buffer
	meta := scene.Meta{Title: p.Name, BedWidth: p.BedWidthMm, BedDepth: p.BedDepthMm}
	if err := scene.Write3MF(&buf, doc, meta); err != nil {
		recordErr(span, err)
		return domain.Artifact{}, err
	}
	return domain.Artifact{Data: buf.Bytes(), Filename: domain.PlateFilename(p.Name, "3mf"), ContentType: domain.ContentType3MF}, nil
}

// itemRef is one plate item's geometry, or neither when it has no data.
type itemRef struct {
	bin       *domain.BinSpec
	baseplate *domain.BaseplateSpec
}

func (r itemRef) key() domain.CacheKey {
	switch {
	case r.bin != nil:
		return domain.BinKey(*r.bin)
	case r.baseplate != nil:
		return domain.BaseplateKey(*r.baseplate)
	}
	return ""
}

// fetch loads the STL of every distinct item, generating misses with at most
// PlateConcurrency generations in flight.
func (s *GenerationService) fetch(ctx context.Context, refs []itemRef) (map[domain.CacheKey]cache.Entry, error) {
	unique := make(map[domain.CacheKey]itemRef)
	var order []domain.CacheKey
	for _, r := range refs {
		k := r.key()
		if k == "" {
			continue
		}
		if _, ok := unique[k]; !ok {
			unique[k] = r
			order = append(order, k)
		}
	}

	results := make([]cache.Entry, len(order))
	g, gctx := errgroup.WithContext(ctx)
	limit := s.PlateConcurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, k := range order {
		r := unique[k]
		g.Go(func() error {
			var err error
			if r.bin != nil {
				results[i], err = s.binSTL(gctx, k, *r.bin)
			} else {
				results[i], err = s.baseplateSTL(gctx, k, *r.baseplate)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[domain.CacheKey]cache.Entry, len(order))
	for i, k := range order {
		out[k] = results[i]
	}
	return out, nil
}

func (s *GenerationService) binSTL(ctx context.Context, key domain.CacheKey, b domain.BinSpec) (cache.Entry, error) {
	return s.Cache.GetOrCreate(ctx, key, func(ctx context.Context) (cache.Entry, error) {
		data, err := s.Generator.GenerateBin(ctx, b)
		if err != nil {
			return cache.Entry{}, err
		}
		return cache.Entry{Data: data, ContentType: domain.ContentTypeSTL}, nil
	})
}

func (s *GenerationService) baseplateSTL(ctx context.Context, key domain.CacheKey, b domain.BaseplateSpec) (cache.Entry, error) {
	return s.Cache.GetOrCreate(ctx, key, func(ctx context.Context) (cache.Entry, error) {
		data, err := s.Generator.GenerateBaseplate(ctx, b)
		if err != nil {
			return cache.Entry{}, err
		}
		return cache.Entry{Data: data, ContentType: domain.ContentTypeSTL}, nil
	})
}

func (s *GenerationService) start(ctx context.Context, name string, kind domain.Kind, key domain.CacheKey) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("generation.kind", string(kind))}
	if key != "" {
		attrs = append(attrs, attribute.String("cache.key", string(key)))
	}
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
