package nominatim_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/placekeeper/internal/adapters/nominatim"
	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/pkg/config"
)

func newClient(t *testing.T, h http.HandlerFunc) *nominatim.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := nominatim.New(config.GeocodingConfig{
		BaseURL:   srv.URL,
		UserAgent: "placekeeper-test/1.0 (ops@example.com)",
		Language:  "es",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestReverse_SendsPolicyHeadersAndParams(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "placekeeper-test/1.0 (ops@example.com)", r.Header.Get("User-Agent"))
		q := r.URL.Query()
		assert.Equal(t, "10.9639", q.Get("lat"))
		assert.Equal(t, "-74.7964", q.Get("lon"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "1", q.Get("addressdetails"))
		assert.Equal(t, "es", q.Get("accept-language"))
		_, _ = w.Write([]byte(`{"address":{
			"town":"Puerto Colombia","state":"Atlántico","country":"Colombia","neighbourhood":"Pradomar"
		}}`))
	})

	addr, err := c.Reverse(context.Background(), 10.9639, -74.7964)
	require.NoError(t, err)
	assert.Equal(t, "Puerto Colombia", addr.Locality())
	assert.Equal(t, "Atlántico", addr.State)
	assert.Equal(t, "Pradomar", addr.District())
}

func TestReverse_RegionFallsBackForState(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"address":{"city":"Bogotá","region":"Bogotá, Distrito Capital"}}`))
	})

	addr, err := c.Reverse(context.Background(), 4.6, -74.08)
	require.NoError(t, err)
	assert.Equal(t, "Bogotá, Distrito Capital", addr.State)
}

func TestReverse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		body  string
		check func(error) bool
	}{
		{"unable to geocode", 200, `{"error":"Unable to geocode"}`, domain.IsProviderNotFound},
		{"rate limited", 429, ``, domain.IsQuotaExceeded},
		{"forbidden", 403, ``, domain.IsInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Reverse(context.Background(), 0, 0)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected classification: %v", err)
		})
	}
}

func TestNew_RequiresUserAgent(t *testing.T) {
	_, err := nominatim.New(config.GeocodingConfig{BaseURL: "http://localhost"})
	assert.Error(t, err)
}
