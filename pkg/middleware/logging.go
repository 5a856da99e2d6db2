package middleware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/qa-api/qaload/pkg/httpapi"
	"github.com/qa-api/qaload/pkg/routing"
)

type ctxKey string

const (
	loggerKey       ctxKey = "logger"
	requestStartKey ctxKey = "request-start"
)

type LoggerOptions struct {
	RequestIDHeader string
	RealIPHeader    string
	// Classifier decides whether a recovered panic is answered as JSON (api) or text.
	Classifier *routing.Classifier
	Repanic    bool
}

func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		RequestIDHeader: "X-Request-Id",
		RealIPHeader:    "X-Real-IP",
	}
}

type responseCaptureWriter struct {
	http.ResponseWriter
	statusCode    int
	statusWritten bool
	bytes         int
}

func (w *responseCaptureWriter) WriteHeader(code int) {
	if !w.statusWritten {
		w.statusCode = code
		w.statusWritten = true
		w.ResponseWriter.WriteHeader(code)
	}
}

// Status returns the HTTP status code
func (w *responseCaptureWriter) Status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *responseCaptureWriter) Write(b []byte) (int, error) {
	if !w.statusWritten {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *responseCaptureWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *responseCaptureWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}

func getRealIP(r *http.Request, opts LoggerOptions) string {
	if opts.RealIPHeader != "" && r.Header.Get(opts.RealIPHeader) != "" {
		return r.Header.Get(opts.RealIPHeader)
	}
	return r.RemoteAddr
}

func getRequestID(r *http.Request, opts LoggerOptions) string {
	if opts.RequestIDHeader != "" && r.Header.Get(opts.RequestIDHeader) != "" {
		return r.Header.Get(opts.RequestIDHeader)
	}
	return uuid.New().String()
}

var tracer = otel.Tracer("qaload-middleware")

// LoggerFrom returns the request-scoped logger, or a standard one outside a request.
func LoggerFrom(ctx context.Context) *logrus.Entry {
	if l, ok := ctx.Value(loggerKey).(*logrus.Entry); ok {
		return l
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func RequestStart(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(requestStartKey).(time.Time)
	return t, ok
}

func WithLogger(logger *logrus.Logger, opts LoggerOptions) mux.MiddlewareFunc {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = routing.NewClassifier(nil)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				requestID := getRequestID(r, opts)

				fieldsLogger := logger.WithFields(logrus.Fields{
					"request-id": requestID,
					"path":       r.RequestURI,
					"method":     r.Method,
				})

				fieldsLogger.WithFields(logrus.Fields{
					"host":       r.Host,
					"ip":         getRealIP(r, opts),
					"user-agent": r.UserAgent(),
				}).Debug("request started")

				propagator := propagation.TraceContext{}
				ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

				ctx, span := tracer.Start(
					ctx,
					"http.request",
					trace.WithAttributes(
						attribute.String("http.method", r.Method),
						attribute.String("http.route", r.URL.Path),
						attribute.String("http.request_id", requestID),
						attribute.String("qaload.route_class", string(classifier.ClassifyPath(r.URL.Path))),
					),
				)
				defer span.End()

				if spanContext := span.SpanContext(); spanContext.HasTraceID() {
					traceID := spanContext.TraceID().String()
					w.Header().Set("X-Trace-Id", traceID)
					fieldsLogger = fieldsLogger.WithField("trace-id", traceID)
				}

				ctx = context.WithValue(ctx, loggerKey, fieldsLogger)
				ctx = context.WithValue(ctx, requestStartKey, start)

				w.Header().Set("X-Request-Id", requestID)

				wrappedWriter := &responseCaptureWriter{ResponseWriter: w}

				defer func() {
					if recovered := recover(); recovered != nil {
						fieldsLogger.WithFields(logrus.Fields{
							"panic":    recovered,
							"stack":    string(debug.Stack()),
							"status":   http.StatusInternalServerError,
							"duration": time.Since(start),
						}).Error("panic recovered in request handler")

						if !wrappedWriter.statusWritten {
							if classifier.ClassifyPath(r.URL.Path) == routing.RouteClassAPI {
								_ = httpapi.WriteError(wrappedWriter, http.StatusInternalServerError, httpapi.CodeInternal, "internal server error", map[string]string{
									"request_id": requestID,
									"path":       r.URL.Path,
								})
							} else {
								http.Error(wrappedWriter, "Internal Server Error", http.StatusInternalServerError)
							}
						}

						if opts.Repanic {
							panic(recovered)
						}
					}
				}()

				next.ServeHTTP(wrappedWriter, r.WithContext(ctx))

				statusCode := wrappedWriter.Status()
				duration := time.Since(start)
				fieldsLogger.WithFields(logrus.Fields{
					"duration":     duration,
					"status-code":  statusCode,
					"status-class": statusCode / 100,
					"bytes":        wrappedWriter.bytes,
				}).Info("request completed")

				span.SetAttributes(
					attribute.Int64("http.request_duration_ms", duration.Milliseconds()),
					attribute.Int("http.status_code", statusCode),
				)
			},
		)
	}
}
