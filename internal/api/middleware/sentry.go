package middleware

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
)

// TracingOptions configures Tracing.
type TracingOptions struct {
	// Collection is tagged on every transaction and on events raised while
	// handling the request.
	Collection string
	// SkipPaths are served without a transaction or hub.
	SkipPaths []string
}

// DefaultTraceSkipPaths are probe and scrape endpoints that would otherwise
// dominate the trace volume.
var DefaultTraceSkipPaths = []string{"/health", "/metrics"}

// Tracing runs each request inside a Sentry transaction named after the
// matched chi route, e.g. "POST /crawl". Unmatched requests keep the raw path.
// Without an initialized client the transactions are dropped.
func Tracing(opts TracingOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(opts.SkipPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			hub := sentry.GetHubFromContext(r.Context())
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
			}
			ctx := sentry.SetHubOnContext(r.Context(), hub)

			spanOpts := []sentry.SpanOption{
				sentry.WithOpName("http.server"),
				sentry.WithTransactionSource(sentry.SourceURL),
			}
			if trace := r.Header.Get(sentry.SentryTraceHeader); trace != "" {
				spanOpts = append(spanOpts, sentry.ContinueFromHeaders(trace, r.Header.Get(sentry.SentryBaggageHeader)))
			}

			tx := sentry.StartTransaction(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path), spanOpts...)
			defer tx.Finish()

			scope := hub.Scope()
			scope.SetContext("request", sentry.Context{
				"method": r.Method,
				"path":   r.URL.Path,
				"query":  r.URL.RawQuery,
			})
			if opts.Collection != "" {
				scope.SetTag("collection", opts.Collection)
				tx.SetTag("collection", opts.Collection)
			}
			if id := GetRequestID(r.Context()); id != "" {
				scope.SetTag("request_id", id)
				tx.SetTag("request_id", id)
			}

			r = r.WithContext(tx.Context())

			defer func() {
				if err := recover(); err != nil {
					tx.Status = sentry.SpanStatusInternalError
					hub.RecoverWithContext(r.Context(), err)
					panic(err)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					tx.Name = r.Method + " " + pattern
					tx.Source = sentry.SourceRoute
				}
			}

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			tx.Status = httpStatusToSpanStatus(status)
			tx.SetData("http.response.status_code", status)

			// Handlers report the underlying error; this only marks the response.
			if status >= 500 {
				hub.CaptureMessage(fmt.Sprintf("%s: HTTP %d", tx.Name, status))
			}
		})
	}
}

func httpStatusToSpanStatus(status int) sentry.SpanStatus {
	switch {
	case status >= 200 && status < 400:
		return sentry.SpanStatusOK
	case status == http.StatusUnauthorized:
		return sentry.SpanStatusUnauthenticated
	case status == http.StatusNotFound:
		return sentry.SpanStatusNotFound
	case status == http.StatusRequestEntityTooLarge:
		return sentry.SpanStatusResourceExhausted
	case status == http.StatusTooManyRequests:
		return sentry.SpanStatusResourceExhausted
	case status >= 400 && status < 500:
		return sentry.SpanStatusInvalidArgument
	case status == http.StatusNotImplemented:
		return sentry.SpanStatusUnimplemented
	case status == http.StatusServiceUnavailable:
		return sentry.SpanStatusUnavailable
	case status == http.StatusGatewayTimeout:
		return sentry.SpanStatusDeadlineExceeded
	default:
		return sentry.SpanStatusInternalError
	}
}
