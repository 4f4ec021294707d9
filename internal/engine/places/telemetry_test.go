package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const secretKey = "AIzaSecret-123"

func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	SetTraceProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)))
	t.Cleanup(func() { SetTraceProvider(otel.GetTracerProvider()) })
	return exp
}

func spanText(spans tracetest.SpanStubs) string {
	var b strings.Builder
	add := func(kvs []attribute.KeyValue) {
		for _, kv := range kvs {
			b.WriteString(string(kv.Key) + "=" + kv.Value.Emit() + "\n")
		}
	}
	for _, s := range spans {
		add(s.Attributes)
		for _, e := range s.Events {
			add(e.Attributes)
		}
		b.WriteString(s.Status.Description + "\n")
	}
	return b.String()
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://maps.googleapis.com/maps/api/geocode/json?address=SC&key=" + secretKey)
	assert.NotContains(t, got, secretKey)
	assert.Contains(t, got, "key="+redacted)
	assert.Contains(t, got, "address=SC")

	plain := "https://maps.googleapis.com/maps/api/geocode/json?address=SC"
	assert.Equal(t, plain, redactURL(plain))
}

func TestKeyAbsentFromSpansOnResponse(t *testing.T) {
	exp := recordSpans(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{APIKey: secretKey, BaseURL: srv.URL, PlainTLS: true})
	require.NoError(t, err)
	loc, err := c.Geocode(context.Background(), "Joinville")
	require.NoError(t, err)
	require.Nil(t, loc)

	spans := exp.GetSpans()
	require.NotEmpty(t, spans)
	text := spanText(spans)
	assert.Contains(t, text, "http.url=")
	assert.NotContains(t, text, secretKey)
}

func TestKeyAbsentFromTransportErrors(t *testing.T) {
	exp := recordSpans(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(Options{APIKey: secretKey, BaseURL: base, PlainTLS: true})
	require.NoError(t, err)
	_, err = c.TextSearch(context.Background(), SearchParams{Query: "retífica em Joinville"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), secretKey)
	assert.Equal(t, KindTransient, KindOf(err))

	spans := exp.GetSpans()
	require.NotEmpty(t, spans)
	assert.NotContains(t, spanText(spans), secretKey)
}
