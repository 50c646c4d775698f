package google_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/placekeeper/internal/adapters/google"
	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/pkg/config"
)

func newClient(t *testing.T, h http.HandlerFunc) *google.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return google.New(config.GoogleConfig{
		APIKey:        "secret-key",
		BaseURL:       srv.URL,
		Timeout:       5 * time.Second,
		PhotoMaxWidth: 800,
	})
}

func TestNearbySearch_MapsResults(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nearbysearch/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "10.9639,-74.7964", q.Get("location"))
		assert.Equal(t, "5000", q.Get("radius"))
		assert.Equal(t, "cafe", q.Get("type"))
		assert.Equal(t, "secret-key", q.Get("key"))
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"next_page_token": "tok-2",
			"results": [{
				"place_id": "gp-1",
				"name": "Cafe X",
				"vicinity": "Calle 72, Barranquilla",
				"rating": 4.4,
				"geometry": {"location": {"lat": 10.9, "lng": -74.5}},
				"photos": [{"photo_reference": "ph-1", "width": 400, "height": 300}]
			}]
		}`))
	})

	page, err := c.NearbySearch(context.Background(), domain.NearbyQuery{
		Lat: 10.9639, Lon: -74.7964, RadiusMeters: 5000, Type: "cafe",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-2", page.NextPageToken)
	require.Len(t, page.Results, 1)
	assert.Equal(t, domain.NearbyResult{
		PlaceID: "gp-1", Name: "Cafe X", Lat: 10.9, Lon: -74.5,
		Vicinity: "Calle 72, Barranquilla", Rating: 4.4, PhotoReference: "ph-1",
	}, page.Results[0])
}

func TestNearbySearch_PageTokenReplacesFilters(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "tok-2", q.Get("pagetoken"))
		assert.Empty(t, q.Get("location"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[]}`))
	})

	page, err := c.NearbySearch(context.Background(), domain.NearbyQuery{PageToken: "tok-2", Type: "cafe"})
	require.NoError(t, err)
	assert.Empty(t, page.Results)
}

func TestNearbySearch_StatusClassification(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		body  string
		check func(error) bool
	}{
		{"zero results", 200, `{"status":"ZERO_RESULTS","results":[]}`, domain.IsProviderNotFound},
		{"over query limit", 200, `{"status":"OVER_QUERY_LIMIT"}`, domain.IsQuotaExceeded},
		{"invalid request", 200, `{"status":"INVALID_REQUEST"}`, domain.IsInvalidRequest},
		{"http 429", 429, ``, domain.IsQuotaExceeded},
		{"http 503", 503, ``, domain.IsNetworkFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.NearbySearch(context.Background(), domain.NearbyQuery{Lat: 1, Lon: 1, RadiusMeters: 10})
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected classification: %v", err)
		})
	}
}

func TestFindPlace_SendsLocationBias(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/findplacefromtext/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Cafe X", q.Get("input"))
		assert.Equal(t, "textquery", q.Get("inputtype"))
		assert.Equal(t, "circle:150@10.9,-74.5", q.Get("locationbias"))
		_, _ = w.Write([]byte(`{"status":"OK","candidates":[
			{"place_id":"gp-1","name":"Cafe X","geometry":{"location":{"lat":10.9001,"lng":-74.5001}}}
		]}`))
	})

	cand, err := c.FindPlace(context.Background(), domain.FindPlaceQuery{Name: "Cafe X", Lat: 10.9, Lon: -74.5, RadiusMeters: 150})
	require.NoError(t, err)
	assert.Equal(t, "gp-1", cand.PlaceID)
	assert.InDelta(t, 10.9001, cand.Lat, 1e-9)
}

func TestFindPlace_EmptyCandidatesIsNotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","candidates":[]}`))
	})

	_, err := c.FindPlace(context.Background(), domain.FindPlaceQuery{Name: "Nada"})
	assert.True(t, domain.IsProviderNotFound(err))
}

func TestDetails_MapsFieldsAndCapsPhotos(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/details/json", r.URL.Path)
		assert.Equal(t, "gp-1", r.URL.Query().Get("place_id"))
		assert.Contains(t, r.URL.Query().Get("fields"), "opening_hours")
		photos := strings.Repeat(`{"photo_reference":"p","width":10,"height":10},`, 7)
		photos = strings.TrimSuffix(photos, ",")
		_, _ = w.Write([]byte(`{"status":"OK","result":{
			"place_id":"gp-1","rating":4.2,"user_ratings_total":87,
			"formatted_phone_number":"(605) 555 0101","website":"https://cafex.co",
			"price_level":2,
			"opening_hours":{"weekday_text":["lunes: 8:00–18:00","martes: 8:00–18:00"]},
			"photos":[` + photos + `]}}`))
	})

	d, err := c.Details(context.Background(), "gp-1")
	require.NoError(t, err)
	require.NotNil(t, d.Rating)
	assert.Equal(t, 4.2, *d.Rating)
	assert.Equal(t, 87, d.TotalRatings)
	assert.Equal(t, "(605) 555 0101", d.Phone)
	require.NotNil(t, d.PriceLevel)
	assert.Equal(t, 2, *d.PriceLevel)
	assert.Len(t, d.OpeningHours, 2)
	assert.Len(t, d.Photos, domain.MaxPhotoDescriptors)
}

func TestDetails_MissingOptionalFields(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","result":{}}`))
	})

	d, err := c.Details(context.Background(), "gp-9")
	require.NoError(t, err)
	assert.Equal(t, "gp-9", d.PlaceID)
	assert.Nil(t, d.Rating)
	assert.Nil(t, d.PriceLevel)
	assert.Empty(t, d.OpeningHours)
}

func TestPhoto_ReturnsBytes(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/photo", r.URL.Path)
		assert.Equal(t, "ph-1", r.URL.Query().Get("photo_reference"))
		assert.Equal(t, "800", r.URL.Query().Get("maxwidth"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake"))
	})

	data, ct, err := c.Photo(context.Background(), "ph-1")
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, []byte("\x89PNG fake"), data)
}

func TestTransportErrorDoesNotLeakKey(t *testing.T) {
	c := google.New(config.GoogleConfig{APIKey: "secret-key", BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

	_, err := c.Details(context.Background(), "gp-1")
	require.Error(t, err)
	assert.True(t, domain.IsNetworkFailure(err))
	assert.NotContains(t, err.Error(), "secret-key")
}
