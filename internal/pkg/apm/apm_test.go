package apm

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNoopOption(t *testing.T) {
	asserter := assert.New(t)
	requirer := require.New(t)

	asserter.NotNil(Global())

	ins, err := New(t.Context(), &Options{})
	requirer.NoError(err)
	asserter.NotNil(ins)

	requirer.NoError(ins.Shutdown(t.Context()))
	assert.NotNil(t, Global().AppTracer())
	assert.NotNil(t, Global().AppMeter())
}

func TestPropagators(t *testing.T) {
	_, err := New(t.Context(), &Options{ServiceName: "inventory-api", Debug: true})
	require.NoError(t, err)

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "x-b3-traceid")
}

func TestHTTPMiddleware(t *testing.T) {
	mw := NewHTTPMiddleware(nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
