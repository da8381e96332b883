package mcpserver

import (
	"context"
	"log/slog"
	"time"
)

// Logging logs every request with its duration and any RPC error.
func Logging(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			start := time.Now()
			resp := next(ctx, req)
			attrs := []any{"method", req.Method, "duration", time.Since(start)}
			if resp != nil && resp.Error != nil {
				logger.Warn("mcp request failed", append(attrs, "code", resp.Error.Code, "error", resp.Error.Message)...)
				return resp
			}
			logger.Debug("mcp request", attrs...)
			return resp
		}
	}
}

// Recovery turns a panicking handler into an internal error response.
func Recovery(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (resp *Response) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic in mcp handler", "method", req.Method, "panic", r)
					resp = errorResponse(req.ID, CodeInternalError, "Internal error")
				}
			}()
			return next(ctx, req)
		}
	}
}
