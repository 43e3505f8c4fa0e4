package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
	"github.com/pluvia-labs/rainfall-oracle/internal/observability"
)

// Client implements domain.Resolver using the Mapbox Geocoding API. The
// provider key is the id of the best reverse-geocoding feature for the
// anchor coordinates, which is stable across requests for the same place.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox resolver client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// Resolve reverse-geocodes fixed-point anchor coordinates into a provider
// location key. An empty ResolvedLocation with a nil error means the API
// found no feature at the coordinates.
func (c *Client) Resolve(ctx context.Context, latMicro, lonMicro int64) (domain.ResolvedLocation, error) {
	lat := float64(latMicro) / float64(domain.CoordScale)
	lon := float64(lonMicro) / float64(domain.CoordScale)

	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality"},
	}

	start := time.Now()
	resolved, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.ResolveDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.ResolveRequests.WithLabelValues("error").Inc()
	case resolved.ProviderKey == "":
		c.metrics.ResolveRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.ResolveRequests.WithLabelValues("success").Inc()
	}
	return resolved, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.ResolvedLocation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.ResolvedLocation{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		return domain.ResolvedLocation{}, nil
	}

	f := mapboxResp.Features[0]
	return domain.ResolvedLocation{
		ProviderKey: f.ID,
		PlaceName:   f.PlaceName,
		Confidence:  f.Relevance,
	}, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID        string  `json:"id"`
	PlaceName string  `json:"place_name"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}
