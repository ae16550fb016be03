package nominatim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/couchcryptid/geode/internal/observability"
	"github.com/segmentio/encoding/json"
)

// Client implements domain.Locator using the Nominatim search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. Nominatim's usage policy requires an
// identifying User-Agent on every request.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		userAgent: userAgent,
		metrics:   metrics,
		logger:    logger,
	}
}

// Locate looks up the best match for name and returns its center, bounding
// box and outer boundary rings.
func (c *Client) Locate(ctx context.Context, name string) (domain.Place, error) {
	params := url.Values{
		"q":               {name},
		"format":          {"jsonv2"},
		"polygon_geojson": {"1"},
		"limit":           {"1"},
	}

	place, err := c.search(ctx, c.baseURL+"/search?"+params.Encode())
	switch {
	case err == nil:
		c.metrics.LocationLookups.WithLabelValues("success").Inc()
	case errors.Is(err, domain.ErrNotFound):
		c.metrics.LocationLookups.WithLabelValues("not_found").Inc()
	default:
		c.metrics.LocationLookups.WithLabelValues("error").Inc()
	}
	return place, err
}

func (c *Client) search(ctx context.Context, fullURL string) (domain.Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Place{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ProviderDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Place{}, fmt.Errorf("nominatim search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Place{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var results []result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return domain.Place{}, fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 {
		return domain.Place{}, domain.ErrNotFound
	}

	place, err := results[0].place()
	if err != nil {
		return domain.Place{}, err
	}
	c.logger.Debug("place located", "name", place.Name, "rings", len(place.Boundary))
	return place, nil
}

// Nominatim API response types.

type result struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Lat         string    `json:"lat"`
	Lon         string    `json:"lon"`
	BoundingBox []string  `json:"boundingbox"` // [minlat, maxlat, minlon, maxlon]
	GeoJSON     *geometry `json:"geojson"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func (r result) place() (domain.Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return domain.Place{}, fmt.Errorf("parse lat %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return domain.Place{}, fmt.Errorf("parse lon %q: %w", r.Lon, err)
	}

	p := domain.Place{
		Name:   r.Name,
		Center: domain.LatLon{Lat: lat, Lon: lon},
	}
	if p.Name == "" {
		p.Name = r.DisplayName
	}
	if bbox, ok := parseBoundingBox(r.BoundingBox); ok {
		p.BBox = bbox
	}
	if r.GeoJSON != nil {
		rings, err := r.GeoJSON.outerRings()
		if err != nil {
			return domain.Place{}, err
		}
		p.Boundary = rings
	}
	return p, nil
}

func parseBoundingBox(raw []string) (domain.BBox, bool) {
	if len(raw) != 4 {
		return domain.BBox{}, false
	}
	var v [4]float64
	for i, s := range raw {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.BBox{}, false
		}
		v[i] = f
	}
	return domain.BBox{MinLat: v[0], MaxLat: v[1], MinLon: v[2], MaxLon: v[3]}, true
}

// outerRings converts GeoJSON [lon, lat] coordinates into rings. Holes are
// dropped. Point and line geometries have no boundary.
func (g geometry) outerRings() ([]domain.Ring, error) {
	switch g.Type {
	case "Polygon":
		var poly [][][2]float64
		if err := json.Unmarshal(g.Coordinates, &poly); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		if len(poly) == 0 {
			return nil, nil
		}
		return []domain.Ring{toRing(poly[0])}, nil
	case "MultiPolygon":
		var multi [][][][2]float64
		if err := json.Unmarshal(g.Coordinates, &multi); err != nil {
			return nil, fmt.Errorf("decode multipolygon: %w", err)
		}
		rings := make([]domain.Ring, 0, len(multi))
		for _, poly := range multi {
			if len(poly) > 0 {
				rings = append(rings, toRing(poly[0]))
			}
		}
		return rings, nil
	default:
		return nil, nil
	}
}

func toRing(coords [][2]float64) domain.Ring {
	ring := make(domain.Ring, len(coords))
	for i, c := range coords {
		ring[i] = domain.LatLon{Lat: c[1], Lon: c[0]}
	}
	return ring
}
