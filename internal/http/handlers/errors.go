// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes the stable, machine-readable error codes and the
// mapping from service errors to (status, code, message). Clients branch on
// the code; the message is safe to display and never carries internal detail
// such as backend stderr or stack traces.
//
//	validation_error    400  malformed or out-of-range request (never queued)
//	payload_too_large   413  request body over the configured cap
//	not_found           404  unknown or expired job, unknown route
//	not_ready           409  job result requested before completion
//	too_many_requests   429  admission denied, with Retry-After
//	generation_failed   500  geometry backend failed or timed out
//	internal_error      500  anything else (including unparsable backend STL)
//	unavailable         503  server shutting down
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/gridfinity-server/internal/admission"
	"github.com/tbourn/gridfinity-server/internal/domain"
	"github.com/tbourn/gridfinity-server/internal/geometry"
	"github.com/tbourn/gridfinity-server/internal/jobs"
)

const (
	ErrCodeValidation       = "validation_error"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeNotFound         = "not_found"
	ErrCodeNotReady         = "not_ready"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeGenerationFailed = "generation_failed"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

var errBodyTooLarge = errors.New("request body too large")

// failErr writes the envelope matching err.
func failErr(c *gin.Context, err error) {
	var (
		ve *domain.ValidationError
		rl *admission.RateLimitedError
		ge *geometry.GenerationError
		nr *jobs.NotReadyError
	)
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeValidation, ve.Error())
	case errors.Is(err, errBodyTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())
	case errors.As(err, &rl):
		c.Header("Retry-After", strconv.Itoa(rl.RetryAfterSeconds()))
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded: "+rl.Reason)
	case errors.Is(err, jobs.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "job not found")
	case errors.As(err, &nr):
		fail(c, http.StatusConflict, ErrCodeNotReady, nr.Error())
	case errors.Is(err, jobs.ErrClosed):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "server shutting down")
	case errors.As(err, &ge):
		failCause(c, http.StatusInternalServerError, ErrCodeGenerationFailed, ge.PublicMessage(), err)
	case errors.Is(err, context.DeadlineExceeded):
		failCause(c, http.StatusInternalServerError, ErrCodeGenerationFailed, jobs.PublicMessage(err), err)
	default:
		failCause(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error", err)
	}
}

// bindError classifies a JSON binding failure.
func bindError(err error) error {
	var (
		mbe *http.MaxBytesError
		ute *json.UnmarshalTypeError
		fe  validator.ValidationErrors
		ve  *domain.ValidationError
	)
	switch {
	case errors.As(err, &mbe):
		return errBodyTooLarge
	case errors.As(err, &fe), errors.As(err, &ve):
		return domain.AsValidationError(err)
	case errors.As(err, &ute):
		return &domain.ValidationError{Field: ute.Field, Reason: "must be of type " + ute.Type.String()}
	}
	return &domain.ValidationError{Reason: "malformed JSON body"}
}
