package tracing

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Route instruments one route. The route pattern is the span name, which
// keeps span names bounded no matter what ids appear in the path. A nil tp
// uses the global provider.
func Route(pattern string, h http.Handler, tp trace.TracerProvider) http.Handler {
	var opts []otelhttp.Option
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	return otelhttp.NewHandler(h, pattern, opts...)
}
