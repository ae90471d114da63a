package api

import (
	"embed"
	"fmt"
	"html/template"
	"net/url"

	"github.com/lox/worldstrat/internal/imagery"
	"github.com/lox/worldstrat/internal/table"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates creates and parses the HTML templates with custom functions.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"deref": func(f *float64) string {
			if f == nil {
				return ""
			}
			return table.FormatFloat(*f)
		},
		"pct": func(n, total int) float64 {
			if total == 0 {
				return 0
			}
			return 100 * float64(n) / float64(total)
		},
		"maxBin": func(bins []table.Bin) int {
			m := 0
			for _, b := range bins {
				if b.Count > m {
					m = b.Count
				}
			}
			return m
		},
		"maxCount": func(counts []table.ValueCount) int {
			m := 0
			for _, c := range counts {
				if c.Count > m {
					m = c.Count
				}
			}
			return m
		},
		"num": func(f float64) string {
			return fmt.Sprintf("%.4g", f)
		},
		"imageURL": func(slot imagery.Slot, tile, name string) string {
			return "/images/" + url.PathEscape(string(slot)) + "/" + url.PathEscape(tile) + "/" + url.PathEscape(name)
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
