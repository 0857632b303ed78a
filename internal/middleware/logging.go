package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/ontime/billsplit/internal/metrics"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// and records its outcome on rec. rec may be nil.
func LoggingInterceptor(rec metrics.Recorder) connect.UnaryInterceptorFunc {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure
			address := ""
			if addr, ok := GetAddress(ctx); ok {
				address = addr.Hex()
			}

			resp, err := next(ctx, req)

			elapsed := time.Since(start)
			duration := elapsed.Milliseconds()
			code := "ok"
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					code = connectErr.Code().String()
					slog.Warn("RPC error",
						"procedure", procedure,
						"code", connectErr.Code(),
						"error", connectErr.Message(),
						"address", address,
						"duration_ms", duration,
					)
				} else {
					code = connect.CodeUnknown.String()
					slog.Error("RPC error",
						"procedure", procedure,
						"error", err,
						"address", address,
						"duration_ms", duration,
					)
				}
			} else {
				slog.Info("RPC ok",
					"procedure", procedure,
					"address", address,
					"duration_ms", duration,
				)
			}

			rec.IncCounter("rpc", map[string]string{"procedure": procedure, "code": code})
			rec.ObserveLatency("rpc", elapsed, map[string]string{"procedure": procedure})
			return resp, err
		}
	}
}
