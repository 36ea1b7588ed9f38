package resource

import (
	"context"
	"io"
)

// RateLimitedReader wraps an io.Reader so ingestion reads respect the
// controller's IO throughput limit.
type RateLimitedReader struct {
	ctx context.Context
	r   io.Reader
	rc  *Controller
}

// NewRateLimitedReader creates a new RateLimitedReader. The context
// bounds waiting for IO budget.
func NewRateLimitedReader(ctx context.Context, r io.Reader, rc *Controller) *RateLimitedReader {
	return &RateLimitedReader{
		ctx: ctx,
		r:   r,
		rc:  rc,
	}
}

// Read acquires budget for the full buffer before reading. The actual
// read may return fewer bytes; the overshoot is accepted to keep the
// limiter cheap.
func (r *RateLimitedReader) Read(p []byte) (n int, err error) {
	if err := r.rc.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
