// Package nominatim is a reverse geocoding client for the OpenStreetMap
// Nominatim API. Its usage policy requires an identifying User-Agent.
package nominatim

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

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/pkg/config"
	"github.com/samirrijal/placekeeper/internal/pkg/metrics"
)

const providerName = "nominatim"

// headerRoundTripper sets fixed headers on every request.
type headerRoundTripper struct {
	transport http.RoundTripper
	headers   map[string]string
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.transport.RoundTrip(req)
}

// Client implements ports.ReverseGeocoder.
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// New creates a client from configuration.
func New(cfg config.GeocodingConfig) (*Client, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, errors.New("nominatim: user agent is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		language: cfg.Language,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &headerRoundTripper{
				transport: http.DefaultTransport,
				headers: map[string]string{
					"User-Agent": cfg.UserAgent,
					"Accept":     "application/json",
				},
			},
		},
	}, nil
}

type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		Municipality  string `json:"municipality"`
		State         string `json:"state"`
		Region        string `json:"region"`
		Country       string `json:"country"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
	} `json:"address"`
}

// Reverse resolves the address around a point.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (addr *domain.ReverseAddress, err error) {
	started := time.Now()
	defer func() {
		result := "ok"
		var perr *domain.ProviderError
		if errors.As(err, &perr) {
			result = perr.Kind.String()
		}
		metrics.ObserveProviderCall(providerName, "reverse", result, started)
	}()

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	if c.language != "" {
		params.Set("accept-language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderInvalidRequest, "build reverse request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderNetwork, "reverse request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, domain.ClassifyHTTPStatus(resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.NewProviderError(domain.ProviderUnknown, "decode reverse response", err)
	}
	if body.Error != "" {
		return nil, domain.NewProviderError(domain.ProviderNotFound, fmt.Sprintf("reverse %f,%f: %s", lat, lon, body.Error), nil)
	}

	a := body.Address
	state := a.State
	if state == "" {
		state = a.Region
	}
	return &domain.ReverseAddress{
		City:          a.City,
		Town:          a.Town,
		Village:       a.Village,
		Municipality:  a.Municipality,
		State:         state,
		Country:       a.Country,
		Suburb:        a.Suburb,
		Neighbourhood: a.Neighbourhood,
	}, nil
}
