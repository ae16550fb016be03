package nominatim

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/couchcryptid/geode/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserAgent     = "geode-test/1.0"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

const atlantaResponse = `[{
	"name": "Atlanta",
	"display_name": "Atlanta, Fulton County, Georgia, United States",
	"lat": "33.7489924",
	"lon": "-84.3902644",
	"boundingbox": ["33.6478079", "33.8868203", "-84.5518189", "-84.2895515"],
	"geojson": {
		"type": "Polygon",
		"coordinates": [
			[[-84.55, 33.65], [-84.29, 33.65], [-84.29, 33.88], [-84.55, 33.88], [-84.55, 33.65]],
			[[-84.40, 33.70], [-84.39, 33.70], [-84.39, 33.71], [-84.40, 33.70]]
		]
	}
}]`

func testClient(baseURL string, metrics *observability.Metrics) *Client {
	return NewClient(baseURL, testUserAgent, 5*time.Second, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, err := io.WriteString(w, body)
		assert.NoError(t, err)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Locate_Polygon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Atlanta", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("polygon_geojson"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, err := io.WriteString(w, atlantaResponse)
		assert.NoError(t, err)
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	place, err := testClient(srv.URL, metrics).Locate(context.Background(), "Atlanta")
	require.NoError(t, err)

	assert.Equal(t, "Atlanta", place.Name)
	assert.InDelta(t, 33.7489924, place.Center.Lat, 1e-9)
	assert.InDelta(t, -84.3902644, place.Center.Lon, 1e-9)
	assert.Equal(t, domain.BBox{MinLat: 33.6478079, MaxLat: 33.8868203, MinLon: -84.5518189, MaxLon: -84.2895515}, place.BBox)

	require.Len(t, place.Boundary, 1, "holes are dropped")
	require.Len(t, place.Boundary[0], 5)
	assert.Equal(t, domain.LatLon{Lat: 33.65, Lon: -84.55}, place.Boundary[0][0])
	assert.Equal(t, domain.LatLon{Lat: 33.88, Lon: -84.29}, place.Boundary[0][2])

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LocationLookups.WithLabelValues("success")), 0)
}

func TestClient_Locate_MultiPolygon(t *testing.T) {
	srv := serve(t, `[{
		"name": "Hawaii", "lat": "19.6", "lon": "-155.5",
		"boundingbox": ["18.9", "22.2", "-160.2", "-154.8"],
		"geojson": {"type": "MultiPolygon", "coordinates": [
			[[[-156, 19], [-155, 19], [-155, 20], [-156, 19]]],
			[[[-158, 21], [-157, 21], [-157, 22], [-158, 21]]]
		]}
	}]`)

	place, err := testClient(srv.URL, observability.NewMetricsForTesting()).Locate(context.Background(), "Hawaii")
	require.NoError(t, err)
	require.Len(t, place.Boundary, 2)
	assert.Equal(t, domain.LatLon{Lat: 21, Lon: -158}, place.Boundary[1][0])
}

func TestClient_Locate_PointGeometryHasNoBoundary(t *testing.T) {
	srv := serve(t, `[{
		"name": "", "display_name": "Peachtree Center",
		"lat": "33.759", "lon": "-84.387",
		"boundingbox": ["33.758", "33.760", "-84.388", "-84.386"],
		"geojson": {"type": "Point", "coordinates": [-84.387, 33.759]}
	}]`)

	place, err := testClient(srv.URL, observability.NewMetricsForTesting()).Locate(context.Background(), "Peachtree Center")
	require.NoError(t, err)
	assert.Equal(t, "Peachtree Center", place.Name)
	assert.Nil(t, place.Boundary)
}

func TestClient_Locate_NoResults(t *testing.T) {
	srv := serve(t, `[]`)

	metrics := observability.NewMetricsForTesting()
	_, err := testClient(srv.URL, metrics).Locate(context.Background(), "Atlantis")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LocationLookups.WithLabelValues("not_found")), 0)
}

func TestClient_Locate_BadCoordinates(t *testing.T) {
	srv := serve(t, `[{"name": "X", "lat": "north", "lon": "-84"}]`)

	_, err := testClient(srv.URL, observability.NewMetricsForTesting()).Locate(context.Background(), "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse lat")
}

func TestClient_Locate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`access denied`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	_, err := testClient(srv.URL, metrics).Locate(context.Background(), "Atlanta")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LocationLookups.WithLabelValues("error")), 0)
}

func TestClient_Locate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testUserAgent, 50*time.Millisecond, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.Locate(context.Background(), "Atlanta")
	require.Error(t, err)
}
