package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/couchcryptid/geode/internal/plan"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProviders points the CLI at canned Nominatim and Open-Meteo responses.
func fakeProviders(t *testing.T) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "Atlanta" {
			_, _ = io.WriteString(w, `[]`)
			return
		}
		_, _ = io.WriteString(w, `[{"name":"Atlanta","lat":"33.75","lon":"-84.39",
			"boundingbox":["33.6","33.9","-84.6","-84.2"],
			"geojson":{"type":"Polygon","coordinates":[[[-84.6,33.6],[-84.2,33.6],[-84.2,33.9],[-84.6,33.9],[-84.6,33.6]]]}}]`)
	})
	mux.HandleFunc("/elevation", func(w http.ResponseWriter, r *http.Request) {
		n := len(strings.Split(r.URL.Query().Get("latitude"), ","))
		vals := make([]string, n)
		for i := range vals {
			vals[i] = "300"
		}
		_, _ = io.WriteString(w, `{"elevation":[`+strings.Join(vals, ",")+`]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("NOMINATIM_URL", srv.URL)
	t.Setenv("OPENMETEO_ELEVATION_URL", srv.URL+"/elevation")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PIPELINE_ENABLED", "false")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_FromFile(t *testing.T) {
	fakeProviders(t)
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"cli-1","steps":[
		{"id":"pt","op":"point_location","args":{"name":"Atlanta"}},
		{"id":"h","op":"field_at","args":{"patch":"pt","variable":"elevation"}}]}`), 0o600))

	out, err := execute(t, "", "run", path)
	require.NoError(t, err)

	var res plan.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "cli-1", res.PlanID)
	assert.Equal(t, plan.StatusOK, res.Status)
	require.NotNil(t, res.Patch)
	require.Len(t, res.Patch.Points, 2)
	assert.InDelta(t, 300.0, *res.Patch.Points[1].Value, 0)
}

func TestRun_FromStdinPretty(t *testing.T) {
	fakeProviders(t)

	out, err := execute(t, `{"steps":[{"id":"a","op":"patch_location","args":{"name":"Atlanta"}}]}`, "run", "--pretty")
	require.NoError(t, err)
	assert.Contains(t, out, "\n  \"plan_id\"")

	var res plan.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.PlanID, "generated id")
	require.NotNil(t, res.Patch)
	assert.Len(t, res.Patch.Boundary, 1)
}

func TestRun_FailedPlanExitsNonZero(t *testing.T) {
	fakeProviders(t)

	out, err := execute(t, `{"id":"bad","steps":[{"id":"x","op":"patch_location","args":{"name":"Atlantis"}}]}`, "run", "-")
	require.ErrorIs(t, err, errPlanFailed)

	var res plan.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotNil(t, res.Error)
	assert.Equal(t, domain.KindNotFound, res.Error.Kind)
}

func TestRun_MissingFile(t *testing.T) {
	_, err := execute(t, "", "run", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read plan")
}

func TestLocate(t *testing.T) {
	fakeProviders(t)

	out, err := execute(t, "", "locate", "Atlanta")
	require.NoError(t, err)
	var view domain.View
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, domain.BBox{MinLat: 33.6, MaxLat: 33.9, MinLon: -84.6, MaxLon: -84.2}, view.BBox)
	assert.Len(t, view.Boundary, 1)

	out, err = execute(t, "", "locate", "--point", "Atlanta")
	require.NoError(t, err)
	view = domain.View{}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Empty(t, view.Boundary)
	require.Len(t, view.Points, 1)
	assert.Equal(t, "Atlanta", view.Points[0].Name)
}

func TestLocate_NotFound(t *testing.T) {
	fakeProviders(t)

	_, err := execute(t, "", "locate", "Atlantis")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOps(t *testing.T) {
	out, err := execute(t, "", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "intersect_raster")
	assert.Contains(t, out, "elevation")
	assert.Contains(t, out, "Temperature (°C)")
}
