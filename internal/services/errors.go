// Package services defines the generation use cases shared by the synchronous
// endpoints and the job scheduler. This file centralizes service-level error
// values so that callers can check them with errors.Is and handlers can map
// them to stable HTTP responses.
package services

import "errors"

var (
	// ErrUnsupportedKind is returned for a request kind the service cannot
	// produce.
	ErrUnsupportedKind = errors.New("unsupported request kind")
)
