package places

import (
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const libraryName = "github.com/contato-rede/leads/internal/engine/places"

var tracer = otel.Tracer(libraryName)

// SetTraceProvider swaps the provider used for upstream call spans.
func SetTraceProvider(provider trace.TracerProvider) {
	tracer = provider.Tracer(libraryName)
}

// instrument opens a span per upstream request and closes it on response or error.
func instrument(client *resty.Client) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), "places "+req.Method)
		req.SetContext(ctx)
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span := trace.SpanFromContext(res.Request.Context())
		defer span.End()
		span.SetAttributes(
			attribute.String("http.url", redactURL(res.Request.URL)),
			attribute.Int("http.status_code", res.StatusCode()),
		)
		if res.IsError() {
			span.SetStatus(codes.Error, res.Status())
		}
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		span := trace.SpanFromContext(req.Context())
		defer span.End()
		span.RecordError(redactError(err))
		span.SetStatus(codes.Error, "request failed")
	})
}
