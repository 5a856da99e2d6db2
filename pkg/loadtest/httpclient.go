package loadtest

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultHTTPTimeout = 60 * time.Second

// NewHTTPClient returns the client shared by every VU of a run. The transport
// propagates trace context to the target.
func NewHTTPClient(timeout time.Duration, maxIdle int) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	if maxIdle <= 0 {
		maxIdle = 200
	}
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(&http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        maxIdle,
			MaxIdleConnsPerHost: maxIdle,
			IdleConnTimeout:     90 * time.Second,
		}),
	}
}
