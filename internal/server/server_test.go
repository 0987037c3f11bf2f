package server

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/mattfenn/erfgen/pkg/engine"
	"github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/pipeline"
)

// stripEngine is a deterministic kernel for handler tests: Partition slices
// the clip extent into equal vertical strips and boolean operations pass
// polygons through.
type stripEngine struct{}

func (stripEngine) BufferAndDissolve(lines []orb.LineString, distance float64, _ engine.BufferStyle) (orb.MultiPolygon, error) {
	var out orb.MultiPolygon
	for _, ls := range lines {
		b := ls.Bound()
		out = append(out, orb.Polygon{{
			{b.Min[0] - distance, b.Min[1] - distance},
			{b.Max[0] + distance, b.Min[1] - distance},
			{b.Max[0] + distance, b.Max[1] + distance},
			{b.Min[0] - distance, b.Max[1] + distance},
			{b.Min[0] - distance, b.Min[1] - distance},
		}})
	}
	return out, nil
}

func (stripEngine) Partition(points []orb.Point, clip orb.Bound) ([]orb.Polygon, error) {
	n := len(points)
	cells := make([]orb.Polygon, n)
	width := (clip.Max[0] - clip.Min[0]) / float64(n)
	for i := range points {
		x0 := clip.Min[0] + float64(i)*width
		x1 := x0 + width
		cells[i] = orb.Polygon{{
			{x0, clip.Min[1]}, {x1, clip.Min[1]}, {x1, clip.Max[1]}, {x0, clip.Max[1]}, {x0, clip.Min[1]},
		}}
	}
	return cells, nil
}

func (stripEngine) Difference(p orb.Polygon, _ orb.MultiPolygon) ([]orb.Polygon, error) {
	return []orb.Polygon{p}, nil
}

func (stripEngine) Intersection(p orb.Polygon, _ orb.MultiPolygon) ([]orb.Polygon, error) {
	return []orb.Polygon{p}, nil
}

func (stripEngine) FixInvalid(p orb.Polygon) ([]orb.Polygon, error) {
	return []orb.Polygon{p}, nil
}

func (stripEngine) Snap(p orb.Polygon, _ orb.MultiPolygon, _ float64) (orb.Polygon, error) {
	return p, nil
}

func (stripEngine) Covers(orb.Polygon, orb.Point) (bool, error) { return true, nil }

func (stripEngine) Area(p orb.Polygon) (float64, error) {
	return math.Abs(planar.Area(p)), nil
}

var _ engine.Engine = stripEngine{}

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(stripEngine{}, nil, nil, logger)
	return New(runner, logger, NewMetricsProvider())
}

const roadsFC = `{
	"type": "FeatureCollection",
	"frame": "EPSG:3857",
	"features": [
		{"type": "Feature", "properties": {},
		 "geometry": {"type": "LineString", "coordinates": [[0, 0], [600, 0]]}}
	]
}`

const buildingsFC = `{
	"type": "FeatureCollection",
	"frame": "EPSG:3857",
	"features": [
		{"type": "Feature", "properties": {},
		 "geometry": {"type": "MultiPoint", "coordinates": [[100, 100], [300, 100], [500, 100]]}}
	]
}`

func generateBody(t *testing.T, opts pipeline.Options, roads, buildings string) *bytes.Buffer {
	t.Helper()
	req := map[string]any{"options": opts}
	if roads != "" {
		req["roads"] = json.RawMessage(roads)
	}
	if buildings != "" {
		req["buildings"] = json.RawMessage(buildings)
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewBuffer(data)
}

func testOptions() pipeline.Options {
	return pipeline.Options{
		TargetFrame:        "EPSG:3857",
		RoadBufferDistance: 10,
		MinArea:            1,
		MaxArea:            0,
	}
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "ok" {
		t.Errorf("body = %q, want %q", got, "ok")
	}
}

func TestGenerate(t *testing.T) {
	srv := testServer(t)
	body := generateBody(t, testOptions(), roadsFC, buildingsFC)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/generate", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}

	var resp struct {
		Count    int             `json:"count"`
		CacheHit bool            `json:"cache_hit"`
		Frame    string          `json:"frame"`
		Parcels  json.RawMessage `json:"parcels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 3 {
		t.Errorf("count = %d, want 3", resp.Count)
	}
	if resp.CacheHit {
		t.Error("fresh run reported as cache hit")
	}
	if resp.Frame != "EPSG:3857" {
		t.Errorf("frame = %q, want EPSG:3857", resp.Frame)
	}

	var fc struct {
		Type     string          `json:"type"`
		Features json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(resp.Parcels, &fc); err != nil {
		t.Fatalf("decode parcels: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("parcels type = %q", fc.Type)
	}
}

func TestGenerateWithoutRoads(t *testing.T) {
	// Cadastral mode with no roads member: tessellation runs unfiltered.
	srv := testServer(t)
	body := generateBody(t, testOptions(), "", buildingsFC)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/generate", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 3 {
		t.Errorf("count = %d, want 3", resp.Count)
	}
}

func TestGenerateMalformedBody(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Code errors.Code `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != errors.ErrCodeInvalidInput {
		t.Errorf("code = %q, want %q", resp.Code, errors.ErrCodeInvalidInput)
	}
}

func TestGenerateInsufficientInput(t *testing.T) {
	srv := testServer(t)
	body := generateBody(t, testOptions(), roadsFC, "") // cadastral without buildings

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/generate", body))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Code errors.Code `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != errors.ErrCodeInsufficientInput {
		t.Errorf("code = %q, want %q", resp.Code, errors.ErrCodeInsufficientInput)
	}
}

func TestGenerateInvalidOptions(t *testing.T) {
	srv := testServer(t)
	opts := testOptions()
	opts.RoadBufferDistance = -5
	body := generateBody(t, opts, roadsFC, buildingsFC)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/generate", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateBlocksMode(t *testing.T) {
	srv := testServer(t)
	opts := testOptions()
	opts.Mode = pipeline.ModeBlocks
	body := generateBody(t, opts, roadsFC, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/generate", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "erfgen_build_info") {
		t.Error("metrics output missing erfgen_build_info")
	}
}
