package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/lox/worldstrat/internal/api"
	"github.com/lox/worldstrat/internal/config"
	"github.com/lox/worldstrat/internal/store"
)

const metadataCSV = `,tile_id,lat,lon,area,cloud_cover,lowres_date,highres_date,IPCC Class,LCCS class,SMOD Class,delta
0,A,10,20,2.5,5,2018-06-01,2019-01-01,Forest,Tree cover,Rural,1
1,B,11,21,2.5,50,2018-07-01,2019-02-01,Cropland,Cropland,Urban,2
`

type testEnv struct {
	srv   *api.Server
	store *store.Store
	dir   string
	cfg   *config.Config
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	metadataPath := filepath.Join(dir, "metadata.csv")
	if err := os.WriteFile(metadataPath, []byte(metadataCSV), 0644); err != nil {
		t.Fatal(err)
	}

	hr := filepath.Join(dir, "hr_dataset")
	if err := os.MkdirAll(filepath.Join(hr, "A"), 0755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(hr, "A", "A_rgb.png"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.MetadataPath = metadataPath
	cfg.HRBase = hr
	cfg.LRBase = filepath.Join(dir, "lr_dataset")
	cfg.ThumbDir = filepath.Join(dir, "thumbs")
	cfg.ThumbSize = 8

	st := setupTestStore(t)
	srv, err := api.NewServer(st, cfg, "8080")
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{srv: srv, store: st, dir: dir, cfg: cfg}
}

func (e *testEnv) get(t *testing.T, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	env := setupEnv(t)

	w := env.get(t, "/health")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("expected ok status, got %s", body)
	}
	if !strings.Contains(body, `"schema_version":3`) {
		t.Errorf("expected schema version 3, got %s", body)
	}
}

func TestIndexPage(t *testing.T) {
	env := setupEnv(t)

	w := env.get(t, "/?cloud_max=10")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	body := w.Body.String()
	for _, want := range []string{
		"<h2>Data overview</h2>",
		`id="map"`,
		"1 of 2 rows",
		"<h2>Tile A</h2>",
		"/images/hr/A/A_rgb.png",
		"no lr files for tile",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q", want)
		}
	}

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "worldstrat_session" {
			session = c
		}
	}
	if session == nil {
		t.Fatal("expected session cookie")
	}
}

func TestIndexPage_LoadError(t *testing.T) {
	env := setupEnv(t)

	w := env.get(t, "/?path="+filepath.Join(env.dir, "missing.csv"))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Could not load metadata.") {
		t.Error("expected load error message")
	}
	if strings.Contains(body, "<h2>Data overview</h2>") {
		t.Error("expected no analysis after a load error")
	}
}

func TestIndexPage_NotFound(t *testing.T) {
	env := setupEnv(t)

	w := env.get(t, "/nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAPIPage_SessionRemembersInputs(t *testing.T) {
	env := setupEnv(t)

	w := env.get(t, "/api/page?cloud_max=10&compare=B")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie")
	}

	w = env.get(t, "/api/page", cookies...)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var page struct {
		ViewRows      int      `json:"view_rows"`
		TileIDs       []string `json:"tile_ids"`
		Compare       string   `json:"compare"`
		CompareImages []struct {
			Absent bool `json:"absent"`
		} `json:"compare_images"`
		Cloud struct {
			Max float64 `json:"max"`
		} `json:"cloud"`
	}
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.ViewRows != 1 {
		t.Errorf("ViewRows = %d, want 1", page.ViewRows)
	}
	if page.Cloud.Max != 10 {
		t.Errorf("Cloud.Max = %v, want 10", page.Cloud.Max)
	}
	if page.Compare != "B" {
		t.Errorf("Compare = %q, want B", page.Compare)
	}
	if len(page.CompareImages) != 2 || !page.CompareImages[0].Absent || !page.CompareImages[1].Absent {
		t.Errorf("CompareImages = %+v, want two absent slots", page.CompareImages)
	}

	n, err := env.store.CountSessions()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}
}

func TestAPIPage_EmptyParamClearsSessionInput(t *testing.T) {
	env := setupEnv(t)

	type pageResp struct {
		Compare    string `json:"compare"`
		Resolution struct {
			Lon string `json:"lon"`
		} `json:"resolution"`
		Cloud struct {
			Max float64 `json:"max"`
		} `json:"cloud"`
	}
	decode := func(t *testing.T, w *httptest.ResponseRecorder) pageResp {
		t.Helper()
		if w.Code != 200 {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var p pageResp
		if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return p
	}

	w := env.get(t, "/api/page?compare=A&lon_col=lat&cloud_max=10")
	cookies := w.Result().Cookies()
	p := decode(t, w)
	if p.Compare != "A" || p.Resolution.Lon != "lat" || p.Cloud.Max != 10 {
		t.Fatalf("first page = %+v, want compare A, lon lat, max 10", p)
	}

	p = decode(t, env.get(t, "/api/page?compare=&lon_col=&cloud_max=", cookies...))
	if p.Compare != "" {
		t.Errorf("Compare = %q, want cleared", p.Compare)
	}
	if p.Resolution.Lon != "lon" {
		t.Errorf("Resolution.Lon = %q, want automatic lon", p.Resolution.Lon)
	}
	if p.Cloud.Max != 50 {
		t.Errorf("Cloud.Max = %v, want observed max 50", p.Cloud.Max)
	}

	p = decode(t, env.get(t, "/api/page", cookies...))
	if p.Compare != "" || p.Resolution.Lon != "lon" {
		t.Errorf("cleared inputs came back from the session: %+v", p)
	}
}

func TestAPIPage_Errors(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "bad cloud max", target: "/api/page?cloud_max=abc", status: http.StatusBadRequest},
		{name: "cloud max out of range", target: "/api/page?cloud_max=101", status: http.StatusBadRequest},
		{name: "cloud max NaN", target: "/api/page?cloud_max=NaN", status: http.StatusBadRequest},
		{name: "cloud max infinite", target: "/api/page?cloud_max=-Inf", status: http.StatusBadRequest},
		{name: "missing file", target: "/api/page?path=" + filepath.Join(env.dir, "missing.csv"), status: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.get(t, tt.target)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if !strings.Contains(w.Body.String(), `"error"`) {
				t.Error("expected error field in JSON response")
			}
		})
	}
}

func TestAPIPoints(t *testing.T) {
	env := setupEnv(t)

	w := env.get(t, "/api/points")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(w.Body).Decode(&fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("type = %q", fc.Type)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}
	if got := fc.Features[0].Properties["popup"]; got != "POI: A<br>Area: 2.5 km²" {
		t.Errorf("popup = %v", got)
	}
}

func TestAPIExport(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		target string
		ct     string
		magic  []byte
	}{
		{target: "/api/view.parquet?cloud_max=10", ct: "application/vnd.apache.parquet", magic: []byte("PAR1")},
		{target: "/api/view.arrow?cloud_max=10", ct: "application/vnd.apache.arrow.stream"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := env.get(t, tt.target)
			if w.Code != 200 {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != tt.ct {
				t.Errorf("Content-Type = %q, want %q", ct, tt.ct)
			}
			if w.Body.Len() == 0 {
				t.Fatal("expected a body")
			}
			if tt.magic != nil && !bytes.HasPrefix(w.Body.Bytes(), tt.magic) {
				t.Error("missing file magic")
			}
		})
	}
}

func TestImageEndpoint(t *testing.T) {
	env := setupEnv(t)

	w := env.get(t, "/images/hr/A/A_rgb.png")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Errorf("thumbnail = %dx%d, want 8x4", b.Dx(), b.Dy())
	}
}

func TestImageEndpoint_Missing(t *testing.T) {
	env := setupEnv(t)

	for _, target := range []string{
		"/images/lr/A/A.png",
		"/images/hr/A/other.png",
		"/images/xx/A/A_rgb.png",
	} {
		w := env.get(t, target)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", target, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s: Content-Type = %q, want placeholder png", target, ct)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupEnv(t)
	env.get(t, "/api/page")

	w := env.get(t, "/metrics")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "worldstrat_render_duration_seconds") {
		t.Error("expected render duration metric")
	}
}
