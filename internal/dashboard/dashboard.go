// Package dashboard runs one render pass: it turns the current inputs into
// the page model shown by the web UI and the JSON API.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/lox/worldstrat/internal/columns"
	"github.com/lox/worldstrat/internal/eda"
	"github.com/lox/worldstrat/internal/geo"
	"github.com/lox/worldstrat/internal/imagery"
	"github.com/lox/worldstrat/internal/metadata"
	"github.com/lox/worldstrat/internal/metrics"
	"github.com/lox/worldstrat/internal/models"
	"github.com/lox/worldstrat/internal/table"
)

// Warning kinds.
const (
	WarnColumn  = "column"
	WarnSection = "section"
	WarnCloud   = "cloud"
	WarnMap     = "map"
	WarnTile    = "tile"
	WarnImage   = "image"
)

// Warning is a non-fatal condition shown next to the affected feature.
type Warning struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// CloudFilter describes the cloud cover filter applied to the view.
type CloudFilter struct {
	Column      string  `json:"column"`
	Applied     bool    `json:"applied"`
	Max         float64 `json:"max"`
	ObservedMax float64 `json:"observed_max"`
	HasObserved bool    `json:"has_observed"`
}

// ImageSlot is the HR or LR image area of one tile. Absent is set, with a
// message, when no image could be found.
type ImageSlot struct {
	Slot    imagery.Slot    `json:"slot"`
	TileID  string          `json:"tile_id"`
	Images  []imagery.Image `json:"images,omitempty"`
	Absent  bool            `json:"absent"`
	Message string          `json:"message,omitempty"`
}

// Page is the result of one render pass.
type Page struct {
	Inputs     models.Inputs      `json:"-"`
	Path       string             `json:"path"`
	Rows       int                `json:"rows"`
	Columns    []string           `json:"columns"`
	Resolution columns.Resolution `json:"resolution"`
	Report     eda.Report         `json:"report"`

	Cloud     CloudFilter `json:"cloud"`
	ViewRows  int         `json:"view_rows"`
	ViewEmpty bool        `json:"view_empty"`

	Map    *geo.View                  `json:"map,omitempty"`
	Points *geojson.FeatureCollection `json:"-"`

	TileIDs     []string   `json:"tile_ids"`
	Tile        string     `json:"tile"`
	TileColumns []string   `json:"tile_columns,omitempty"`
	TileRows    [][]string `json:"tile_rows,omitempty"`
	TileEmpty   bool       `json:"tile_empty"`

	TileImages    []ImageSlot `json:"tile_images,omitempty"`
	Compare       string      `json:"compare,omitempty"`
	CompareImages []ImageSlot `json:"compare_images,omitempty"`

	Split []table.ValueCount `json:"split,omitempty"`

	Warnings []Warning `json:"warnings,omitempty"`

	// View is the cloud-filtered table the map and tile products derive from.
	View *table.Table `json:"-"`
}

func (p *Page) warn(kind, msg string) {
	metrics.RenderWarnings.WithLabelValues(kind).Inc()
	p.Warnings = append(p.Warnings, Warning{Kind: kind, Message: msg})
}

// Options are the UI defaults of the dashboard.
type Options struct {
	// DefaultCloudMax is used when the inputs leave the threshold unset. Nil
	// means the observed maximum, which keeps every non-null row.
	DefaultCloudMax *float64
	MapZoom         float64
}

// Builder renders pages from the shared load memo and image finder.
type Builder struct {
	cache  *metadata.Cache
	finder *imagery.Finder
	opts   Options
}

func NewBuilder(cache *metadata.Cache, finder *imagery.Finder, opts Options) *Builder {
	if opts.MapZoom <= 0 {
		opts.MapZoom = geo.DefaultZoom
	}
	return &Builder{cache: cache, finder: finder, opts: opts}
}

// Build renders one page. A *metadata.LoadError for the metadata or split
// file is returned as the error and nothing else is computed. Every other
// condition degrades the affected feature and is reported as a warning.
func (b *Builder) Build(ctx context.Context, in models.Inputs) (*Page, error) {
	start := time.Now()
	defer func() {
		metrics.RenderDuration.Observe(time.Since(start).Seconds())
	}()

	entry, err := b.cache.Load(in.Path)
	if err != nil {
		log.Printf("dashboard: %v", err)
		return nil, err
	}

	var split []table.ValueCount
	if in.SplitPath != "" {
		split, err = b.cache.SplitCounts(in.SplitPath)
		if err != nil {
			log.Printf("dashboard: %v", err)
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := entry.Table
	p := &Page{
		Inputs:     in,
		Path:       in.Path,
		Rows:       t.Len(),
		Columns:    t.Columns(),
		Resolution: entry.Resolution,
		Split:      split,
		Compare:    in.Compare,
	}
	if ov := overrides(in); len(ov) > 0 {
		p.Resolution = columns.ResolveAll(t, ov)
	}
	for _, w := range p.Resolution.Warnings {
		p.warn(WarnColumn, w)
	}

	p.Report = eda.Analyze(t)
	for _, s := range p.Report.Failed() {
		p.warn(WarnSection, fmt.Sprintf("%s: %s", s.Title, s.Err))
	}

	view, err := b.filterCloud(t, in, &p.Cloud)
	if err != nil {
		p.warn(WarnCloud, fmt.Sprintf("cloud cover filter skipped: %v", err))
		view = t
	}
	p.View = view
	p.ViewRows = view.Len()
	p.ViewEmpty = view.Len() == 0

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.buildMap(p)
	b.buildTile(p)

	if in.Compare != "" {
		p.CompareImages = b.imageSlots(p, in.Compare)
	}
	return p, nil
}

func overrides(in models.Inputs) columns.Overrides {
	ov := columns.Overrides{}
	if in.LatCol != "" {
		ov[columns.Latitude] = in.LatCol
	}
	if in.LonCol != "" {
		ov[columns.Longitude] = in.LonCol
	}
	if in.IDCol != "" {
		ov[columns.Identifier] = in.IDCol
	}
	return ov
}

// filterCloud applies the cloud cover threshold. The threshold falls back
// from the inputs to the configured default to the observed maximum.
func (b *Builder) filterCloud(t *table.Table, in models.Inputs, cf *CloudFilter) (*table.Table, error) {
	cf.Column = eda.CloudCover
	observed, ok, err := t.Max(eda.CloudCover)
	if err != nil {
		return nil, err
	}
	cf.ObservedMax, cf.HasObserved = observed, ok

	switch {
	case in.CloudMax.Valid:
		cf.Max = in.CloudMax.Float64
	case b.opts.DefaultCloudMax != nil:
		cf.Max = *b.opts.DefaultCloudMax
	default:
		cf.Max = observed
	}

	view, err := table.FilterByMax(t, eda.CloudCover, cf.Max)
	if err != nil {
		return nil, err
	}
	cf.Applied = true
	return view, nil
}

func (b *Builder) buildMap(p *Page) {
	if !p.Resolution.HasGeo() {
		p.warn(WarnMap, "map skipped: latitude or longitude column unresolved")
		return
	}
	points, err := geo.Points(p.View, p.Resolution)
	if err != nil {
		p.warn(WarnMap, fmt.Sprintf("map skipped: %v", err))
		return
	}
	v := geo.NewView(p.View, p.Resolution, b.opts.MapZoom)
	p.Points = points
	p.Map = &v
}

func (b *Builder) buildTile(p *Page) {
	id, err := p.Resolution.Column(columns.Identifier)
	if err != nil {
		p.warn(WarnTile, fmt.Sprintf("tile selection skipped: %v", err))
		return
	}
	p.TileIDs, err = table.Unique(p.View, id)
	if err != nil {
		p.warn(WarnTile, fmt.Sprintf("tile selection skipped: %v", err))
		return
	}

	p.Tile = p.Inputs.Tile
	if p.Tile == "" && len(p.TileIDs) > 0 {
		p.Tile = p.TileIDs[0]
	}
	if p.Tile == "" {
		p.TileEmpty = true
		return
	}

	rows, err := table.FilterByKey(p.View, id, p.Tile)
	if err != nil {
		p.warn(WarnTile, fmt.Sprintf("tile lookup skipped: %v", err))
		return
	}
	p.TileColumns = rows.Columns()
	for i := 0; i < rows.Len(); i++ {
		p.TileRows = append(p.TileRows, rows.Record(i))
	}
	if rows.Len() == 0 {
		p.TileEmpty = true
		return
	}
	p.TileImages = b.imageSlots(p, p.Tile)
}

func (b *Builder) imageSlots(p *Page, tileID string) []ImageSlot {
	slots := make([]ImageSlot, 0, len(imagery.Slots))
	for _, slot := range imagery.Slots {
		s := ImageSlot{Slot: slot, TileID: tileID}
		images, err := b.finder.Find(slot, tileID)
		if err != nil {
			s.Absent = true
			s.Message = err.Error()
			p.warn(WarnImage, err.Error())
		} else {
			s.Images = images
		}
		slots = append(slots, s)
	}
	return slots
}
