// Job HTTP handlers.
//
// Asynchronous callers submit a generation, poll its status and download the
// result once complete:
//   - POST /jobs/bin | /jobs/baseplate | /jobs/plate | /jobs/plate-3mf
//   - GET  /jobs/:id
//   - GET  /jobs/:id/result
//
// Submissions pass admission control unless they replay an earlier
// submission through Idempotency-Key.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/gridfinity-server/internal/domain"
	"github.com/tbourn/gridfinity-server/internal/http/middleware"
	"github.com/tbourn/gridfinity-server/internal/jobs"
)

// HeaderIdempotencyReplayed marks a response that replays an earlier job.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// JobResponse describes a job to API clients.
type JobResponse struct {
	JobID string `json:"jobId" example:"6f1c2a8e-3d4b-4c55-9a0e-1b2c3d4e5f60"`
	// pending | running | complete | failed
	Status string `json:"status" example:"pending"`
	// Present once the job is complete
	ResultURL string `json:"resultUrl,omitempty" example:"/api/jobs/6f1c2a8e-3d4b-4c55-9a0e-1b2c3d4e5f60/result"`
	// Present when the job failed
	Error string `json:"error,omitempty" example:"generation timed out"`
}

func (h *Handlers) jobResponse(st domain.JobStatus) JobResponse {
	resp := JobResponse{JobID: st.ID, Status: string(st.State)}
	switch st.State {
	case domain.JobComplete:
		resp.ResultURL = h.opts.BasePath + "/jobs/" + st.ID + "/result"
	case domain.JobFailed:
		resp.Error = st.Error
	}
	return resp
}

// submitStatus is 200 for jobs answered from the cache and 202 otherwise.
func submitStatus(st domain.JobStatus) int {
	if st.State == domain.JobComplete {
		return http.StatusOK
	}
	return http.StatusAccepted
}

// submit runs the shared submission flow for an already bound request.
func (h *Handlers) submit(c *gin.Context, req domain.GenerationRequest) {
	client := middleware.ClientIDFrom(c)
	key, _ := middleware.GetIdempotencyKey(c)

	if middleware.IsReplay(c) {
		if st, found := h.jobs.Replay(client, key); found {
			h.replayed(c, st)
			return
		}
	}

	// Invalid requests never reach admission.
	if err := req.Validate(); err != nil {
		failErr(c, err)
		return
	}

	ticket, err := h.admit.Admit(client)
	if err != nil {
		failErr(c, err)
		return
	}

	st, replay, err := h.jobs.Submit(c.Request.Context(), req, jobs.SubmitOptions{
		ClientID:       client,
		IdempotencyKey: key,
		Release:        ticket.Release,
	})
	if err != nil {
		ticket.Refund()
		failErr(c, err)
		return
	}
	if replay {
		// A concurrent submission registered the key first.
		ticket.Refund()
		h.replayed(c, st)
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("job_id", st.ID).
		Str("kind", string(st.Kind)).
		Str("state", string(st.State)).
		Msg("job submitted")
	ok(c, submitStatus(st), h.jobResponse(st))
}

// replayed answers a replay with the job's current view.
func (h *Handlers) replayed(c *gin.Context, st domain.JobStatus) {
	c.Header(HeaderIdempotencyReplayed, "true")
	ok(c, http.StatusOK, h.jobResponse(st))
}

// SubmitBinJob godoc
// @ID          submitBinJob
// @Summary     Submit a bin job
// @Description Queues a bin generation. A cached artifact yields a job that is already complete (200).
// @Tags        Jobs
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string          false  "Client-chosen key; repeats return the original job"
// @Param       body             body    domain.BinSpec  true   "Bin parameters"
// @Success     200  {object}  handlers.JobResponse    "Complete (cache hit or replay)"
// @Success     202  {object}  handlers.JobResponse    "Queued"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Header      429  {integer} Retry-After             "Seconds until a retry may succeed"
// @Router      /jobs/bin [post]
func (h *Handlers) SubmitBinJob(c *gin.Context) {
	var spec domain.BinSpec
	if !bindJSON(c, &spec) {
		return
	}
	h.submit(c, domain.NewBinRequest(spec))
}

// SubmitBaseplateJob godoc
// @ID          submitBaseplateJob
// @Summary     Submit a baseplate job
// @Tags        Jobs
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                false  "Client-chosen key"
// @Param       body             body    domain.BaseplateSpec  true   "Baseplate parameters"
// @Success     200  {object}  handlers.JobResponse
// @Success     202  {object}  handlers.JobResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     429  {object}  handlers.ErrorResponse
// @Router      /jobs/baseplate [post]
func (h *Handlers) SubmitBaseplateJob(c *gin.Context) {
	var spec domain.BaseplateSpec
	if !bindJSON(c, &spec) {
		return
	}
	h.submit(c, domain.NewBaseplateRequest(spec))
}

// SubmitPlateJob godoc
// @ID          submitPlateJob
// @Summary     Submit a plate job (ZIP of STLs)
// @Tags        Jobs
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string            false  "Client-chosen key"
// @Param       body             body    domain.PlateSpec  true   "Plate layout"
// @Success     202  {object}  handlers.JobResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     429  {object}  handlers.ErrorResponse
// @Router      /jobs/plate [post]
func (h *Handlers) SubmitPlateJob(c *gin.Context) {
	var spec domain.PlateSpec
	if !bindJSON(c, &spec) {
		return
	}
	h.submit(c, domain.NewPlateRequest(spec))
}

// SubmitPlate3MFJob godoc
// @ID          submitPlate3MFJob
// @Summary     Submit a plate job (3MF)
// @Tags        Jobs
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string              false  "Client-chosen key"
// @Param       body             body    domain.Plate3MFSpec  true   "Build plate layout"
// @Success     202  {object}  handlers.JobResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     429  {object}  handlers.ErrorResponse
// @Router      /jobs/plate-3mf [post]
func (h *Handlers) SubmitPlate3MFJob(c *gin.Context) {
	var spec domain.Plate3MFSpec
	if !bindJSON(c, &spec) {
		return
	}
	h.submit(c, domain.NewPlate3MFRequest(spec))
}

// GetJob godoc
// @ID          getJob
// @Summary     Get job status
// @Tags        Jobs
// @Produce     json
// @Param       id   path      string  true  "Job ID"
// @Success     200  {object}  handlers.JobResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown or expired job"
// @Router      /jobs/{id} [get]
func (h *Handlers) GetJob(c *gin.Context) {
	st, err := h.jobs.Status(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, h.jobResponse(st))
}

// GetJobResult godoc
// @ID          getJobResult
// @Summary     Download a job result
// @Description Returns the artifact of a complete job as an attachment.
// @Tags        Jobs
// @Produce     octet-stream
// @Produce     application/zip
// @Produce     model/3mf
// @Param       id   path      string  true  "Job ID"
// @Success     200  {file}    file
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown or expired job"
// @Failure     409  {object}  handlers.ErrorResponse  "Job not complete"
// @Router      /jobs/{id}/result [get]
func (h *Handlers) GetJobResult(c *gin.Context) {
	art, err := h.jobs.Result(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	attachment(c, art)
}
