// Generation HTTP handlers.
//
// This file exposes the synchronous download endpoints:
//   - POST /bin/stl        (single bin, STL)
//   - POST /baseplate/stl  (single baseplate, STL)
//   - POST /plate/stl      (ZIP with one STL per plate item)
//   - POST /plate/3mf      (3MF scene with every item placed)
//
// They share the artifact cache with the job endpoints but bypass admission
// control, and answer with the artifact as an attachment.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/gridfinity-server/internal/admission"
	"github.com/tbourn/gridfinity-server/internal/domain"
	"github.com/tbourn/gridfinity-server/internal/jobs"
)

//
// Service contracts (context-aware)
//

// Generator produces artifacts for validated requests.
//
// Implementations must be safe for concurrent use and honor ctx.
type Generator interface {
	Run(ctx context.Context, req domain.GenerationRequest) (domain.Artifact, error)
}

// JobQueue is the asynchronous job registry consumed by the job endpoints.
type JobQueue interface {
	Submit(ctx context.Context, req domain.GenerationRequest, opts jobs.SubmitOptions) (domain.JobStatus, bool, error)
	Replay(clientID, key string) (domain.JobStatus, bool)
	Status(id string) (domain.JobStatus, error)
	Result(id string) (domain.Artifact, error)
}

//
// Handler wiring
//

// Options tunes Handlers.
type Options struct {
	// BasePath prefixes result URLs, e.g. "/api".
	BasePath string
	// SyncTimeout bounds a synchronous generation. Zero means no bound
	// beyond the client's connection.
	SyncTimeout time.Duration
	// Version is reported by the health endpoint.
	Version string
}

// Handlers groups the generation, job and health endpoints.
type Handlers struct {
	gen   Generator
	jobs  JobQueue
	admit admission.Admitter
	opts  Options
}

// New constructs Handlers. A nil admitter disables admission control.
func New(gen Generator, q JobQueue, admit admission.Admitter, opts Options) *Handlers {
	if admit == nil {
		admit = admission.Noop{}
	}
	if opts.BasePath == "/" {
		opts.BasePath = ""
	}
	return &Handlers{gen: gen, jobs: q, admit: admit, opts: opts}
}

// bindJSON decodes and validates the body into v, answering 400/413 on
// failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		failErr(c, bindError(err))
		return false
	}
	return true
}

// serveSync runs req under the sync timeout and streams the artifact.
func (h *Handlers) serveSync(c *gin.Context, req domain.GenerationRequest) {
	ctx := c.Request.Context()
	if h.opts.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.SyncTimeout)
		defer cancel()
	}

	art, err := h.gen.Run(ctx, req)
	if err != nil {
		failErr(c, err)
		return
	}
	attachment(c, art)
}

//
// Handlers
//

// GenerateBinSTL godoc
// @ID          generateBinSTL
// @Summary     Generate a bin
// @Description Returns the STL of a single Gridfinity bin. Identical requests are served from the artifact cache.
// @Tags        Generation
// @Accept      json
// @Produce     octet-stream
// @Param       body  body  domain.BinSpec  true  "Bin parameters (snake_case or camelCase)"
// @Success     200  {file}    file                    "STL attachment"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     500  {object}  handlers.ErrorResponse  "Generation failed"
// @Router      /bin/stl [post]
func (h *Handlers) GenerateBinSTL(c *gin.Context) {
	var spec domain.BinSpec
	if !bindJSON(c, &spec) {
		return
	}
	h.serveSync(c, domain.NewBinRequest(spec))
}

// GenerateBaseplateSTL godoc
// @ID          generateBaseplateSTL
// @Summary     Generate a baseplate
// @Description Returns the STL of a baseplate grid.
// @Tags        Generation
// @Accept      json
// @Produce     octet-stream
// @Param       body  body  domain.BaseplateSpec  true  "Baseplate parameters"
// @Success     200  {file}    file                    "STL attachment"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     500  {object}  handlers.ErrorResponse  "Generation failed"
// @Router      /baseplate/stl [post]
func (h *Handlers) GenerateBaseplateSTL(c *gin.Context) {
	var spec domain.BaseplateSpec
	if !bindJSON(c, &spec) {
		return
	}
	h.serveSync(c, domain.NewBaseplateRequest(spec))
}

// GeneratePlateZip godoc
// @ID          generatePlateZip
// @Summary     Generate a plate as ZIP
// @Description Returns a ZIP archive with one STL per plate item. Items without bin_data are skipped; bin entries carry their item index.
// @Tags        Generation
// @Accept      json
// @Produce     application/zip
// @Param       body  body  domain.PlateSpec  true  "Plate layout"
// @Success     200  {file}    file                    "ZIP attachment"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     500  {object}  handlers.ErrorResponse  "Generation failed"
// @Router      /plate/stl [post]
func (h *Handlers) GeneratePlateZip(c *gin.Context) {
	var spec domain.PlateSpec
	if !bindJSON(c, &spec) {
		return
	}
	h.serveSync(c, domain.NewPlateRequest(spec))
}

// GeneratePlate3MF godoc
// @ID          generatePlate3MF
// @Summary     Generate a plate as 3MF
// @Description Returns a single 3MF scene. Each distinct item is stored once as a mesh and placed once per item with its position and rotation.
// @Tags        Generation
// @Accept      json
// @Produce     model/3mf
// @Param       body  body  domain.Plate3MFSpec  true  "Build plate layout in millimeters"
// @Success     200  {file}    file                    "3MF attachment"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     500  {object}  handlers.ErrorResponse  "Generation failed"
// @Router      /plate/3mf [post]
func (h *Handlers) GeneratePlate3MF(c *gin.Context) {
	var spec domain.Plate3MFSpec
	if !bindJSON(c, &spec) {
		return
	}
	h.serveSync(c, domain.NewPlate3MFRequest(spec))
}
