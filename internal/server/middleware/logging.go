// Package middleware provides the HTTP request logging middleware.
package middleware

import (
	"context"
	"strings"
	"time"

	pkglog "CrateScout/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// RequestIDHeader carries the request id in and out of the server.
const RequestIDHeader = "X-Request-ID"

// Logging returns a middleware that injects a request context and logs every
// request with its status and duration. Slow requests get an extra warning.
//
// Example output:
//
//	🟢 POST /api/v1/search/filter - 200 (542ms) | RequestID: mgrn0zfqda
//	🐌 [mgrn0zfqda] Slow request detected | POST /api/v1/search/filter | 1438ms
func Logging(logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			startTime := time.Now()

			var (
				method    string
				path      string
				operation string
				ip        string
				userAgent string
				requestID string
			)

			if tr, ok := transport.FromServerContext(ctx); ok {
				operation = tr.Operation()
				method = tr.Kind().String()
				path = operation

				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path
					if httpReq.URL.RawQuery != "" {
						path = path + "?" + httpReq.URL.RawQuery
					}

					ip = extractClientIP(httpReq)
					userAgent = httpReq.Header.Get("User-Agent")
					requestID = httpReq.Header.Get(RequestIDHeader)
				}

				if requestID == "" {
					requestID = pkglog.GenerateRequestID()
				}
				tr.ReplyHeader().Set(RequestIDHeader, requestID)
			}

			ctx = pkglog.WithRequestContext(ctx, requestID, operation)

			reply, err := handler(ctx, req)

			duration := time.Since(startTime).Milliseconds()

			logger.RequestWithContext(ctx, method, path, extractHTTPStatus(err), duration,
				"ip", ip,
				"user_agent", userAgent,
			)

			return reply, err
		}
	}
}

// extractClientIP prefers X-Real-IP, then the first X-Forwarded-For hop, then RemoteAddr
func extractClientIP(req *http.Request) string {
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	return req.RemoteAddr
}

// extractHTTPStatus maps a handler error to the status code Kratos will write
func extractHTTPStatus(err error) int {
	if err == nil {
		return 200
	}
	return int(errors.FromError(err).Code)
}
