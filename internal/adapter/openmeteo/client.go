// Package openmeteo samples weather, air-quality and elevation fields from
// the Open-Meteo APIs.
package openmeteo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/couchcryptid/geode/internal/observability"
	"github.com/segmentio/encoding/json"
)

// maxCoordsPerRequest keeps request URLs well under typical length limits.
const maxCoordsPerRequest = 100

// Endpoints holds the base URL of each Open-Meteo API.
type Endpoints struct {
	Forecast   string
	AirQuality string
	Elevation  string
}

// Client implements domain.FieldProvider.
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client.
func NewClient(endpoints Endpoints, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoints: endpoints,
		metrics:   metrics,
		logger:    logger,
	}
}

// SampleField returns the current value of variable at each coordinate.
// Missing readings come back as NaN.
func (c *Client) SampleField(ctx context.Context, variable string, coords []domain.LatLon) ([]float64, error) {
	v, ok := domain.LookupVariable(variable)
	if !ok {
		return nil, fmt.Errorf("%w: unknown variable %q", domain.ErrInvalidState, variable)
	}

	out := make([]float64, 0, len(coords))
	for start := 0; start < len(coords); start += maxCoordsPerRequest {
		end := min(start+maxCoordsPerRequest, len(coords))
		values, err := c.sample(ctx, v, coords[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}
	c.logger.Debug("field sampled", "variable", v.Name, "coords", len(coords))
	return out, nil
}

// SamplePoint returns the current value of variable at coord.
func (c *Client) SamplePoint(ctx context.Context, variable string, coord domain.LatLon) (float64, error) {
	values, err := c.SampleField(ctx, variable, []domain.LatLon{coord})
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

func (c *Client) sample(ctx context.Context, v domain.Variable, coords []domain.LatLon) ([]float64, error) {
	params := url.Values{
		"latitude":  {joinCoords(coords, func(p domain.LatLon) float64 { return p.Lat })},
		"longitude": {joinCoords(coords, func(p domain.LatLon) float64 { return p.Lon })},
	}

	var (
		base     string
		endpoint string
	)
	switch v.Family {
	case domain.FamilyForecast:
		base, endpoint = c.endpoints.Forecast, "forecast"
		params.Set("current", v.Name)
	case domain.FamilyAirQuality:
		base, endpoint = c.endpoints.AirQuality, "air_quality"
		params.Set("current", v.Name)
	case domain.FamilyElevation:
		base, endpoint = c.endpoints.Elevation, "elevation"
	default:
		return nil, fmt.Errorf("%w: variable %q has no provider", domain.ErrInvalidState, v.Name)
	}

	body, err := c.get(ctx, base+"?"+params.Encode(), endpoint)
	if err != nil {
		return nil, err
	}

	var values []float64
	if v.Family == domain.FamilyElevation {
		values, err = decodeElevation(body)
	} else {
		values, err = decodeCurrent(body, v.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if len(values) != len(coords) {
		return nil, fmt.Errorf("open-meteo %s: got %d values for %d coordinates", endpoint, len(values), len(coords))
	}
	return values, nil
}

func (c *Client) get(ctx context.Context, fullURL, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ProviderDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("open-meteo %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, apiReason(body))
	}
	return body, nil
}

// Open-Meteo API response types.

type currentResponse struct {
	Current map[string]json.RawMessage `json:"current"`
}

type elevationResponse struct {
	Elevation []*float64 `json:"elevation"`
}

type errorResponse struct {
	Reason string `json:"reason"`
}

// decodeCurrent reads the current-conditions response. A single location is
// returned as an object, several as an array of objects.
func decodeCurrent(body []byte, variable string) ([]float64, error) {
	var resps []currentResponse
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &resps); err != nil {
			return nil, err
		}
	} else {
		var one currentResponse
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, err
		}
		resps = []currentResponse{one}
	}

	values := make([]float64, len(resps))
	for i, r := range resps {
		v, err := currentValue(r.Current[variable])
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", variable, err)
		}
		values[i] = v
	}
	return values, nil
}

// currentValue decodes one variable of the current block. The block also
// carries non-numeric fields such as time, so only the requested key is read.
func currentValue(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return math.NaN(), nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func decodeElevation(body []byte) ([]float64, error) {
	var resp elevationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	values := make([]float64, len(resp.Elevation))
	for i, e := range resp.Elevation {
		values[i] = orNaN(e)
	}
	return values, nil
}

func apiReason(body []byte) string {
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Reason != "" {
		return e.Reason
	}
	return string(body)
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func joinCoords(coords []domain.LatLon, pick func(domain.LatLon) float64) string {
	parts := make([]string, len(coords))
	for i, p := range coords {
		parts[i] = strconv.FormatFloat(pick(p), 'f', 4, 64)
	}
	return strings.Join(parts, ",")
}
