// Package google is a client for the Places web service: nearby search,
// find place from text, place details and photos.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/pkg/config"
	"github.com/samirrijal/placekeeper/internal/pkg/metrics"
	"github.com/samirrijal/placekeeper/internal/pkg/telemetry"
)

const (
	providerName  = "google"
	maxPhotoBytes = 15 << 20

	detailFields    = "place_id,rating,user_ratings_total,formatted_phone_number,website,opening_hours,price_level,photos"
	findPlaceFields = "place_id,name,geometry"
)

// Client implements ports.PlacesProvider.
type Client struct {
	apiKey        string
	baseURL       string
	photoMaxWidth int
	httpClient    *http.Client
}

// New creates a client from configuration.
func New(cfg config.GoogleConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		photoMaxWidth: cfg.PhotoMaxWidth,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

type location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type photo struct {
	PhotoReference   string   `json:"photo_reference"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	HTMLAttributions []string `json:"html_attributions"`
}

type nearbyResponse struct {
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message"`
	NextPageToken string `json:"next_page_token"`
	Results       []struct {
		PlaceID  string  `json:"place_id"`
		Name     string  `json:"name"`
		Vicinity string  `json:"vicinity"`
		Rating   float64 `json:"rating"`
		Geometry struct {
			Location location `json:"location"`
		} `json:"geometry"`
		Photos []photo `json:"photos"`
	} `json:"results"`
}

type findPlaceResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Candidates   []struct {
		PlaceID  string `json:"place_id"`
		Name     string `json:"name"`
		Geometry struct {
			Location location `json:"location"`
		} `json:"geometry"`
	} `json:"candidates"`
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		PlaceID              string   `json:"place_id"`
		Rating               *float64 `json:"rating"`
		UserRatingsTotal     int      `json:"user_ratings_total"`
		FormattedPhoneNumber string   `json:"formatted_phone_number"`
		Website              string   `json:"website"`
		PriceLevel           *int     `json:"price_level"`
		OpeningHours         *struct {
			WeekdayText []string `json:"weekday_text"`
		} `json:"opening_hours"`
		Photos []photo `json:"photos"`
	} `json:"result"`
}

// NearbySearch fetches one page of results around a point. A page token, when
// set, replaces every other filter. ZERO_RESULTS is reported as a not-found error.
func (c *Client) NearbySearch(ctx context.Context, q domain.NearbyQuery) (*domain.NearbyPage, error) {
	params := url.Values{}
	if q.PageToken != "" {
		params.Set("pagetoken", q.PageToken)
	} else {
		params.Set("location", latLng(q.Lat, q.Lon))
		params.Set("radius", strconv.Itoa(q.RadiusMeters))
		if q.Type != "" {
			params.Set("type", q.Type)
		}
		if q.Keyword != "" {
			params.Set("keyword", q.Keyword)
		}
	}

	var resp nearbyResponse
	if err := c.getJSON(ctx, "nearbysearch", params, &resp); err != nil {
		return nil, err
	}
	if perr := domain.ClassifyStatus(resp.Status, resp.ErrorMessage); perr != nil {
		return nil, perr
	}

	page := &domain.NearbyPage{NextPageToken: resp.NextPageToken}
	for _, r := range resp.Results {
		res := domain.NearbyResult{
			PlaceID:  r.PlaceID,
			Name:     r.Name,
			Lat:      r.Geometry.Location.Lat,
			Lon:      r.Geometry.Location.Lng,
			Vicinity: r.Vicinity,
			Rating:   r.Rating,
		}
		if len(r.Photos) > 0 {
			res.PhotoReference = r.Photos[0].PhotoReference
		}
		page.Results = append(page.Results, res)
	}
	return page, nil
}

// FindPlace resolves the best candidate for a name biased to a small circle.
func (c *Client) FindPlace(ctx context.Context, q domain.FindPlaceQuery) (*domain.FindPlaceCandidate, error) {
	params := url.Values{}
	params.Set("input", q.Name)
	params.Set("inputtype", "textquery")
	params.Set("fields", findPlaceFields)
	params.Set("locationbias", fmt.Sprintf("circle:%d@%s", q.RadiusMeters, latLng(q.Lat, q.Lon)))

	var resp findPlaceResponse
	if err := c.getJSON(ctx, "findplacefromtext", params, &resp); err != nil {
		return nil, err
	}
	if perr := domain.ClassifyStatus(resp.Status, resp.ErrorMessage); perr != nil {
		return nil, perr
	}
	if len(resp.Candidates) == 0 {
		return nil, domain.NewProviderError(domain.ProviderNotFound, "no candidates for "+q.Name, nil)
	}

	best := resp.Candidates[0]
	return &domain.FindPlaceCandidate{
		PlaceID: best.PlaceID,
		Name:    best.Name,
		Lat:     best.Geometry.Location.Lat,
		Lon:     best.Geometry.Location.Lng,
	}, nil
}

// Details fetches the enrichment fields of a place.
func (c *Client) Details(ctx context.Context, placeID string) (*domain.PlaceDetails, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailFields)

	var resp detailsResponse
	if err := c.getJSON(ctx, "details", params, &resp); err != nil {
		return nil, err
	}
	if perr := domain.ClassifyStatus(resp.Status, resp.ErrorMessage); perr != nil {
		return nil, perr
	}

	r := resp.Result
	d := &domain.PlaceDetails{
		PlaceID:      r.PlaceID,
		Rating:       r.Rating,
		TotalRatings: r.UserRatingsTotal,
		Phone:        r.FormattedPhoneNumber,
		Website:      r.Website,
		PriceLevel:   r.PriceLevel,
	}
	if d.PlaceID == "" {
		d.PlaceID = placeID
	}
	if r.OpeningHours != nil {
		d.OpeningHours = r.OpeningHours.WeekdayText
	}
	for i, p := range r.Photos {
		if i == domain.MaxPhotoDescriptors {
			break
		}
		d.Photos = append(d.Photos, domain.PhotoDescriptor{
			Reference:        p.PhotoReference,
			Width:            p.Width,
			Height:           p.Height,
			HTMLAttributions: p.HTMLAttributions,
		})
	}
	return d, nil
}

// Photo downloads the raw bytes behind a photo reference.
func (c *Client) Photo(ctx context.Context, reference string) ([]byte, string, error) {
	params := url.Values{}
	params.Set("photo_reference", reference)
	if c.photoMaxWidth > 0 {
		params.Set("maxwidth", strconv.Itoa(c.photoMaxWidth))
	}

	var data []byte
	var contentType string
	err := c.do(ctx, "photo", c.baseURL+"/photo", params, func(resp *http.Response) error {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
		if err != nil {
			return domain.NewProviderError(domain.ProviderNetwork, "read photo", err)
		}
		if len(b) > maxPhotoBytes {
			return domain.NewProviderError(domain.ProviderInvalidRequest, "photo exceeds size limit", nil)
		}
		data = b
		contentType = resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	return c.do(ctx, endpoint, c.baseURL+"/"+endpoint+"/json", params, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.NewProviderError(domain.ProviderUnknown, "decode "+endpoint+" response", err)
		}
		return nil
	})
}

// do issues a GET, classifies transport and HTTP failures, and hands 200
// responses to read. It records a metric and a span per call.
func (c *Client) do(ctx context.Context, endpoint, rawURL string, params url.Values, read func(*http.Response) error) (err error) {
	started := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanProviderCall,
		trace.WithAttributes(
			attribute.String("provider", providerName),
			attribute.String(telemetry.AttrEndpoint, endpoint),
		))
	defer func() {
		result := "ok"
		if err != nil {
			result = resultLabel(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.End()
		metrics.ObserveProviderCall(providerName, endpoint, result, started)
	}()

	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.NewProviderError(domain.ProviderInvalidRequest, "build "+endpoint+" request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewProviderError(domain.ProviderNetwork, endpoint+" request failed", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return domain.ClassifyHTTPStatus(resp.StatusCode)
	}
	return read(resp)
}

func resultLabel(err error) string {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return perr.Kind.String()
	}
	return "error"
}

// redact drops the request URL, which carries the API key, from transport errors.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func latLng(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}
