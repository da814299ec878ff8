package obs

import (
	"context"
	"log/slog"
	"time"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Time starts a timer for op. The returned func logs the duration and the
// error pointed to by errp, and records the operation histogram.
func Time(ctx context.Context, op string) func(errp *error) {
	start := time.Now()
	reqID := RequestID(ctx)

	return func(errp *error) {
		dur := time.Since(start)
		OperationDuration.WithLabelValues(op).Observe(dur.Seconds())

		if errp != nil && *errp != nil {
			slog.WarnContext(ctx, "operation failed", "req_id", reqID, "op", op, "dur_ms", dur.Milliseconds(), "err", *errp)
			return
		}
		slog.DebugContext(ctx, "operation done", "req_id", reqID, "op", op, "dur_ms", dur.Milliseconds())
	}
}
