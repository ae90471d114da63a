package dashboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/worldstrat/internal/imagery"
	"github.com/lox/worldstrat/internal/metadata"
	"github.com/lox/worldstrat/internal/models"
)

const scenesCSV = `Unnamed: 0,lat,lon,area,cloud_cover,IPCC Class
A,10,20,2.5,5,Forest
B,11,21,2.5,50,Cropland
`

type fixture struct {
	dir     string
	builder *Builder
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()
	hr := filepath.Join(dir, "hr_dataset")
	lr := filepath.Join(dir, "lr_dataset")
	require.NoError(t, os.MkdirAll(filepath.Join(hr, "A"), 0o755))
	require.NoError(t, os.MkdirAll(lr, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(hr, "A", "A_rgb.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(lr, "A.tif"), []byte("tif"), 0o644))

	cache, err := metadata.NewCache(4)
	require.NoError(t, err)
	return &fixture{dir: dir, builder: NewBuilder(cache, imagery.NewFinder(hr, lr), opts)}
}

func (f *fixture) write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func hasWarning(p *Page, kind string) bool {
	for _, w := range p.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

func TestBuild_CloudFilterScenario(t *testing.T) {
	f := newFixture(t, Options{})
	path := f.write(t, "metadata.csv", scenesCSV)

	p, err := f.builder.Build(context.Background(), models.Inputs{
		Path:     path,
		CloudMax: sql.NullFloat64{Float64: 10, Valid: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, p.Rows)
	assert.Equal(t, 1, p.ViewRows)
	assert.True(t, p.Cloud.Applied)
	assert.Equal(t, 10.0, p.Cloud.Max)
	assert.Equal(t, 50.0, p.Cloud.ObservedMax)
	assert.Equal(t, []string{"A"}, p.TileIDs)
	assert.Equal(t, "A", p.Tile)
	assert.False(t, p.TileEmpty)
	require.Len(t, p.TileRows, 1)
	assert.Equal(t, "A", p.TileRows[0][0])

	require.NotNil(t, p.Map)
	assert.Equal(t, 10.0, p.Map.Lat)
	assert.Equal(t, 20.0, p.Map.Lon)
	require.NotNil(t, p.Points)
	assert.Len(t, p.Points.Features, 1)

	require.Len(t, p.TileImages, 2)
	assert.Equal(t, imagery.SlotHR, p.TileImages[0].Slot)
	assert.False(t, p.TileImages[0].Absent)
	assert.Equal(t, "A_rgb.png", p.TileImages[0].Images[0].Name)
	assert.False(t, p.TileImages[1].Absent)
}

func TestBuild_DefaultThresholdKeepsAllRows(t *testing.T) {
	f := newFixture(t, Options{})
	path := f.write(t, "metadata.csv", scenesCSV)

	p, err := f.builder.Build(context.Background(), models.Inputs{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 50.0, p.Cloud.Max)
	assert.Equal(t, 2, p.ViewRows)
	assert.Equal(t, []string{"A", "B"}, p.TileIDs)
}

func TestBuild_ConfiguredDefaultThreshold(t *testing.T) {
	limit := 20.0
	f := newFixture(t, Options{DefaultCloudMax: &limit})
	path := f.write(t, "metadata.csv", scenesCSV)

	p, err := f.builder.Build(context.Background(), models.Inputs{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 20.0, p.Cloud.Max)
	assert.Equal(t, 1, p.ViewRows)
}

func TestBuild_MissingLongitudeSkipsMap(t *testing.T) {
	f := newFixture(t, Options{})
	path := f.write(t, "metadata.csv", "id,lat,cloud_cover\nA,10,5\nB,11,50\n")

	p, err := f.builder.Build(context.Background(), models.Inputs{Path: path})
	require.NoError(t, err)

	assert.Nil(t, p.Map)
	assert.Nil(t, p.Points)
	assert.True(t, hasWarning(p, WarnColumn))
	assert.True(t, hasWarning(p, WarnMap))
	assert.Equal(t, []string{"A", "B"}, p.TileIDs)
	assert.True(t, p.Report.Cloud.OK())
}

func TestBuild_MissingImagesAreSlotLocal(t *testing.T) {
	f := newFixture(t, Options{})
	path := f.write(t, "metadata.csv", scenesCSV)

	p, err := f.builder.Build(context.Background(), models.Inputs{Path: path, Tile: "B", Compare: "nope"})
	require.NoError(t, err)

	assert.False(t, p.TileEmpty)
	require.Len(t, p.TileImages, 2)
	for _, s := range p.TileImages {
		assert.True(t, s.Absent, "slot %s", s.Slot)
		assert.NotEmpty(t, s.Message)
	}
	require.Len(t, p.CompareImages, 2)
	for _, s := range p.CompareImages {
		assert.True(t, s.Absent, "slot %s", s.Slot)
	}
	assert.True(t, hasWarning(p, WarnImage))
	assert.NotNil(t, p.Map)
	assert.True(t, p.Report.Overview.OK())
}

func TestBuild_TileOutsideViewIsEmpty(t *testing.T) {
	f := newFixture(t, Options{})
	path := f.write(t, "metadata.csv", scenesCSV)

	p, err := f.builder.Build(context.Background(), models.Inputs{
		Path:     path,
		CloudMax: sql.NullFloat64{Float64: 10, Valid: true},
		Tile:     "B",
	})
	require.NoError(t, err)
	assert.True(t, p.TileEmpty)
	assert.Empty(t, p.TileRows)
	assert.Empty(t, p.TileImages)
}

func TestBuild_EmptyView(t *testing.T) {
	f := newFixture(t, Options{})
	path := f.write(t, "metadata.csv", scenesCSV)

	p, err := f.builder.Build(context.Background(), models.Inputs{
		Path:     path,
		CloudMax: sql.NullFloat64{Float64: 1, Valid: true},
	})
	require.NoError(t, err)
	assert.True(t, p.ViewEmpty)
	assert.True(t, p.TileEmpty)
	assert.Empty(t, p.TileIDs)
	require.NotNil(t, p.Map)
	assert.True(t, p.Map.Defaulted)
}

func TestBuild_LoadErrorIsFatal(t *testing.T) {
	f := newFixture(t, Options{})

	p, err := f.builder.Build(context.Background(), models.Inputs{Path: filepath.Join(f.dir, "missing.csv")})
	assert.Nil(t, p)
	var le *metadata.LoadError
	assert.ErrorAs(t, err, &le)
}

func TestBuild_SplitCounts(t *testing.T) {
	f := newFixture(t, Options{})
	path := f.write(t, "metadata.csv", scenesCSV)
	split := f.write(t, "split.csv", "tile,split\nA,train\nB,val\n")

	p, err := f.builder.Build(context.Background(), models.Inputs{Path: path, SplitPath: split})
	require.NoError(t, err)
	require.Len(t, p.Split, 2)

	bad := f.write(t, "bad_split.csv", "tile,fold\nA,1\n")
	_, err = f.builder.Build(context.Background(), models.Inputs{Path: path, SplitPath: bad})
	var le *metadata.LoadError
	assert.ErrorAs(t, err, &le)
}

func TestBuild_ColumnOverrides(t *testing.T) {
	f := newFixture(t, Options{})
	path := f.write(t, "metadata.csv", "Unnamed: 0,lat,lon,y,x,cloud_cover\nA,1,2,30,40,5\n")

	p, err := f.builder.Build(context.Background(), models.Inputs{Path: path, LatCol: "y", LonCol: "x"})
	require.NoError(t, err)
	assert.Equal(t, "y", p.Resolution.Lat)
	assert.Equal(t, "x", p.Resolution.Lon)
	require.NotNil(t, p.Map)
	assert.Equal(t, 30.0, p.Map.Lat)
}

func TestBuild_NoCloudColumn(t *testing.T) {
	f := newFixture(t, Options{})
	path := f.write(t, "metadata.csv", "id,lat,lon\nA,1,2\n")

	p, err := f.builder.Build(context.Background(), models.Inputs{Path: path})
	require.NoError(t, err)
	assert.False(t, p.Cloud.Applied)
	assert.Equal(t, 1, p.ViewRows)
	assert.True(t, hasWarning(p, WarnCloud))
}

func TestBuild_InfiniteCellsAreNull(t *testing.T) {
	f := newFixture(t, Options{})
	path := f.write(t, "metadata.csv", `Unnamed: 0,lat,lon,area,cloud_cover,delta
A,10,20,2.5,5,3
B,11,21,6,inf,inf
C,12,22,2.5,40,-inf
`)

	p, err := f.builder.Build(context.Background(), models.Inputs{Path: path})
	require.NoError(t, err)

	assert.Equal(t, 40.0, p.Cloud.ObservedMax)
	assert.Equal(t, 2, p.ViewRows)
	assert.Equal(t, []string{"A", "C"}, p.TileIDs)

	_, err = json.Marshal(p)
	assert.NoError(t, err)
}

func TestBuild_CancelledContext(t *testing.T) {
	f := newFixture(t, Options{})
	path := f.write(t, "metadata.csv", scenesCSV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.builder.Build(ctx, models.Inputs{Path: path})
	assert.ErrorIs(t, err, context.Canceled)
}
