package api

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/worldstrat/internal/config"
	"github.com/lox/worldstrat/internal/dashboard"
	"github.com/lox/worldstrat/internal/imagery"
	"github.com/lox/worldstrat/internal/metadata"
	"github.com/lox/worldstrat/internal/models"
	"github.com/lox/worldstrat/internal/store"
)

const (
	sessionCookie = "worldstrat_session"
	sessionMaxAge = 30 * 24 * time.Hour
)

type Server struct {
	store   *store.Store
	cfg     *config.Config
	port    string
	tmpl    *template.Template
	cache   *metadata.Cache
	finder  *imagery.Finder
	thumbs  *imagery.ThumbCache
	builder *dashboard.Builder
}

func NewServer(st *store.Store, cfg *config.Config, port string) (*Server, error) {
	cache, err := metadata.NewCache(cfg.CacheEntries)
	if err != nil {
		return nil, err
	}
	cache.SetObserver(st)

	finder := imagery.NewFinder(cfg.HRBase, cfg.LRBase)
	builder := dashboard.NewBuilder(cache, finder, dashboard.Options{
		DefaultCloudMax: cfg.DefaultCloudMax,
		MapZoom:         cfg.MapZoom,
	})

	return &Server{
		store:   st,
		cfg:     cfg,
		port:    port,
		tmpl:    newTemplates(),
		cache:   cache,
		finder:  finder,
		thumbs:  imagery.NewThumbCache(cfg.ThumbDir, cfg.ThumbSize),
		builder: builder,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /images/{slot}/{tile}/{name}", s.handleImage)
	mux.HandleFunc("GET /api/page", s.handleAPIPage)
	mux.HandleFunc("GET /api/points", s.handleAPIPoints)
	mux.HandleFunc("GET /api/view.arrow", s.handleAPIExport)
	mux.HandleFunc("GET /api/view.parquet", s.handleAPIExport)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	go s.pruneSessions(ctx)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// pruneSessions drops sessions idle for longer than sessionMaxAge.
func (s *Server) pruneSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.DeleteSessionsBefore(time.Now().Add(-sessionMaxAge))
			if err != nil {
				log.Printf("api: prune sessions: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("api: pruned %d idle sessions", n)
			}
		}
	}
}

// session returns the caller's session, issuing a new cookie when the
// request has none.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *models.Session {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(sessionMaxAge.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	sess, err := s.store.GetSession(id)
	if err != nil {
		if !errors.Is(err, store.ErrSessionNotFound) {
			log.Printf("api: %v", err)
		}
		return &models.Session{ID: id}
	}
	return sess
}

// inputs resolves the render inputs of a request: query parameters first
// (present but empty clears a control), then the session's stored inputs,
// then the configured defaults. The result is saved back to the session.
// Changing the metadata path drops the memoised table of the previous path
// along with the inputs tied to it.
func (s *Server) inputs(w http.ResponseWriter, r *http.Request) (models.Inputs, error) {
	q := r.URL.Query()
	parsed, err := parseInputs(q)
	if err != nil {
		return models.Inputs{}, err
	}

	defaults := models.Inputs{
		Path:      s.cfg.MetadataPath,
		SplitPath: s.cfg.SplitPath,
	}

	sess := s.session(w, r)
	stored := sess.Inputs
	in := overlay(q, parsed, stored).Merge(defaults)
	if stored.Path != "" && in.Path != stored.Path {
		s.cache.Invalidate(stored.Path)
		in = overlay(q, parsed, models.Inputs{SplitPath: stored.SplitPath}).Merge(defaults)
	}

	sess.Inputs = in
	if err := s.store.UpsertSession(*sess); err != nil {
		log.Printf("api: %v", err)
	}
	return in, nil
}
