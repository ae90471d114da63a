package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/lox/worldstrat/internal/imagery"
)

// handleImage serves a PNG thumbnail of one tile image. A missing or
// undecodable image gets the placeholder with a 404 so the page keeps
// rendering the other slot.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	slot, ok := imagery.ParseSlot(r.PathValue("slot"))
	if !ok {
		s.servePlaceholder(w, "unknown image slot")
		return
	}

	img, err := s.finder.Lookup(slot, r.PathValue("tile"), r.PathValue("name"))
	if err != nil {
		s.servePlaceholder(w, "image not found")
		return
	}

	data, err := s.thumbs.Get(img)
	if err != nil {
		if !errors.Is(err, imagery.ErrImageNotFound) {
			log.Printf("api: thumbnail %s: %v", img.Path, err)
		}
		s.servePlaceholder(w, "image unavailable")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

func (s *Server) servePlaceholder(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNotFound)
	w.Write(imagery.Placeholder(text, s.thumbs.Size()))
}
