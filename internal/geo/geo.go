// Package geo turns a metadata table into the point data and initial view
// consumed by the map collaborator.
package geo

import (
	"fmt"
	"html"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/lox/worldstrat/internal/columns"
	"github.com/lox/worldstrat/internal/table"
)

// DefaultZoom is the initial zoom of the overview map.
const DefaultZoom = 2

// DefaultCenter is shown when no centre can be computed.
var DefaultCenter = orb.Point{0, 0}

// View is the initial map view.
type View struct {
	Lat       float64     `json:"lat"`
	Lon       float64     `json:"lon"`
	Zoom      float64     `json:"zoom"`
	Defaulted bool        `json:"defaulted"`
	Bound     *[4]float64 `json:"bound,omitempty"` // min lon, min lat, max lon, max lat
}

// NewView centres on the mean location of t, falling back to DefaultCenter
// when the centre is undefined.
func NewView(t *table.Table, res columns.Resolution, zoom float64) View {
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	v := View{Lat: DefaultCenter.Lat(), Lon: DefaultCenter.Lon(), Zoom: zoom, Defaulted: true}
	if !res.HasGeo() {
		return v
	}
	center, ok := table.Center(t, res.Lat, res.Lon)
	if !ok {
		return v
	}
	v.Lat, v.Lon, v.Defaulted = center.Lat(), center.Lon(), false

	if mp := points(t, res); len(mp) > 0 {
		b := mp.Bound()
		v.Bound = &[4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	}
	return v
}

func points(t *table.Table, res columns.Resolution) orb.MultiPoint {
	lat, err := t.Column(res.Lat)
	if err != nil {
		return nil
	}
	lon, err := t.Column(res.Lon)
	if err != nil {
		return nil
	}
	var mp orb.MultiPoint
	for i := 0; i < t.Len(); i++ {
		y, okLat := lat.Float(i)
		x, okLon := lon.Float(i)
		if okLat && okLon {
			mp = append(mp, orb.Point{x, y})
		}
	}
	return mp
}

// Points builds one GeoJSON Point feature per row with both coordinates
// present. Rows missing either coordinate are left off the map.
func Points(t *table.Table, res columns.Resolution) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	if !res.HasGeo() {
		return fc, nil
	}
	lat, err := t.Column(res.Lat)
	if err != nil {
		return nil, err
	}
	lon, err := t.Column(res.Lon)
	if err != nil {
		return nil, err
	}
	var id *table.Column
	if res.ID != "" {
		id, _ = t.Column(res.ID)
	}
	area, _ := t.Column("area")
	cloud, _ := t.Column("cloud_cover")

	for i := 0; i < t.Len(); i++ {
		y, okLat := lat.Float(i)
		x, okLon := lon.Float(i)
		if !okLat || !okLon {
			continue
		}
		f := geojson.NewFeature(orb.Point{x, y})
		f.Properties["source_index"] = t.SourceIndex(i)

		poi := ""
		if id != nil {
			poi, _ = id.Text(i)
			f.Properties["id"] = poi
		}
		areaText := ""
		if area != nil {
			if a, ok := area.Text(i); ok {
				areaText = a
				if v, ok := area.Float(i); ok {
					f.Properties["area"] = v
				} else {
					f.Properties["area"] = a
				}
			}
		}
		if cloud != nil {
			if v, ok := cloud.Float(i); ok {
				f.Properties["cloud_cover"] = v
			}
		}
		f.Properties["popup"] = Popup(poi, areaText)
		fc.Append(f)
	}
	return fc, nil
}

// Popup is the marker popup HTML. Cell values are escaped.
func Popup(id, area string) string {
	if area == "" {
		return fmt.Sprintf("POI: %s", html.EscapeString(id))
	}
	return fmt.Sprintf("POI: %s<br>Area: %s km²", html.EscapeString(id), html.EscapeString(area))
}
