package analysis

import (
	"errors"
	"fmt"
)

// ErrNotConfigured indicates the upstream API key is missing. The service
// still boots; every analyze call fails with this until the key is set.
var ErrNotConfigured = errors.New("upstream API key is not configured")

// InsufficientInputError indicates the batch is below the minimum size.
// No upstream call is made in that case.
type InsufficientInputError struct {
	Min int
	Got int
}

func (e *InsufficientInputError) Error() string {
	return fmt.Sprintf("at least %d images are required, got %d", e.Min, e.Got)
}

// UpstreamError carries a non-2xx status and raw error body from the
// inference service, forwarded to the caller verbatim. Transport-level
// failures (including timeouts) use status 502.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("upstream returned status %d", e.Status)
}
