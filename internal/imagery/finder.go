// Package imagery finds, decodes and thumbnails the HR/LR image files of a
// tile.
package imagery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lox/worldstrat/internal/metrics"
)

// ErrImageNotFound is the non-fatal, slot-local absence of an image.
var ErrImageNotFound = errors.New("image not found")

// Slot is an image product of a tile.
type Slot string

const (
	SlotHR Slot = "hr"
	SlotLR Slot = "lr"
)

// Slots lists the image slots in display order.
var Slots = []Slot{SlotHR, SlotLR}

// ParseSlot validates a slot name.
func ParseSlot(s string) (Slot, bool) {
	switch Slot(s) {
	case SlotHR, SlotLR:
		return Slot(s), true
	}
	return "", false
}

// extensions are the image file types shown, compared case-insensitively.
var extensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// IsImageFile reports whether name has a supported image extension.
func IsImageFile(name string) bool {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

// Image is one image file found for a tile.
type Image struct {
	Slot   Slot   `json:"slot"`
	TileID string `json:"tile_id"`
	Name   string `json:"name"`
	Path   string `json:"-"`
}

// Finder locates tile images under the HR and LR base directories.
type Finder struct {
	bases map[Slot]string
}

func NewFinder(hrBase, lrBase string) *Finder {
	return &Finder{bases: map[Slot]string{SlotHR: hrBase, SlotLR: lrBase}}
}

// Base returns the configured directory for a slot.
func (f *Finder) Base(slot Slot) string { return f.bases[slot] }

// Find returns the images of tileID in slot, sorted by name. Two layouts
// are searched: <base>/<id>.<ext> and <base>/<id>/<id>_*.<ext>.
func (f *Finder) Find(slot Slot, tileID string) ([]Image, error) {
	images, err := f.find(slot, tileID)
	outcome := "found"
	if err != nil {
		outcome = "missing"
	}
	metrics.ImageLookups.WithLabelValues(string(slot), outcome).Inc()
	return images, err
}

func (f *Finder) find(slot Slot, tileID string) ([]Image, error) {
	base := f.bases[slot]
	if base == "" {
		return nil, fmt.Errorf("%w: no %s directory configured", ErrImageNotFound, slot)
	}
	if !validTileID(tileID) {
		return nil, fmt.Errorf("%w: invalid tile id %q", ErrImageNotFound, tileID)
	}

	var images []Image

	if entries, err := os.ReadDir(base); err == nil {
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !IsImageFile(name) {
				continue
			}
			if strings.TrimSuffix(name, filepath.Ext(name)) == tileID {
				images = append(images, Image{Slot: slot, TileID: tileID, Name: name, Path: filepath.Join(base, name)})
			}
		}
	}

	dir := filepath.Join(base, tileID)
	if entries, err := os.ReadDir(dir); err == nil {
		prefix := tileID + "_"
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasPrefix(name, prefix) || !IsImageFile(name) {
				continue
			}
			images = append(images, Image{Slot: slot, TileID: tileID, Name: name, Path: filepath.Join(dir, name)})
		}
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no %s files for tile %q", ErrImageNotFound, slot, tileID)
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

// Lookup returns the single named image of a tile, as listed by Find.
func (f *Finder) Lookup(slot Slot, tileID, name string) (Image, error) {
	images, err := f.find(slot, tileID)
	if err != nil {
		return Image{}, err
	}
	for _, img := range images {
		if img.Name == name {
			return img, nil
		}
	}
	return Image{}, fmt.Errorf("%w: %s/%s/%s", ErrImageNotFound, slot, tileID, name)
}

func validTileID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
