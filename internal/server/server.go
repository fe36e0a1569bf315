// Package server wires the trip planner services behind one HTTP server:
// the Huma REST API, the Datastar editor SSE routes, and the planner page.
package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-trip/internal/api"
	"github.com/joeblew999/plat-trip/internal/api/editor"
	"github.com/joeblew999/plat-trip/internal/db"
	"github.com/joeblew999/plat-trip/internal/draw"
	"github.com/joeblew999/plat-trip/internal/feature"
	"github.com/joeblew999/plat-trip/internal/humastar"
	"github.com/joeblew999/plat-trip/internal/schedule"
	"github.com/joeblew999/plat-trip/internal/snap"
	"github.com/joeblew999/plat-trip/internal/track"
)

// Config holds the server configuration.
type Config struct {
	Host     string
	Port     string
	DataDir  string
	WebDir   string  // Path to web/ directory for static files and templates
	SnapZoom float64 // Map zoom level used for pixel-space snap distances
}

// Server is the trip planner HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	store    feature.Store
	tracks   *track.Registry
	drawing  *draw.Controller
	schedule *schedule.Editor
	renderer *humastar.Renderer
}

// New creates a new trip planner server.
func New(cfg Config) *Server {
	mux := http.NewServeMux()

	if cfg.SnapZoom == 0 {
		cfg.SnapZoom = 13
	}

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-trip API", "1.0.0")
	humaConfig.Info.Description = "Trip planning API for drawing expedition features, snapping to GPX tracks, and scheduling checkpoints."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
	}

	// DuckDB is the preferred feature store; fall back to the JSON file
	// store when the database cannot be opened.
	conn, err := db.Get(db.Config{
		DataDir: cfg.DataDir,
		DBName:  "trip",
	})
	if err == nil {
		s.db = conn
		s.store = feature.NewDuckStore(conn)
	} else {
		s.store = feature.NewFileStore(cfg.DataDir)
	}

	s.tracks = track.NewRegistry(cfg.DataDir)
	s.drawing = draw.NewController(s.store, snap.NewEngine(cfg.SnapZoom), s.tracks)
	s.schedule = schedule.NewEditor(s.store)

	// Initialize template renderer for editor SSE handlers
	if cfg.WebDir != "" {
		fragmentsDir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if r, err := humastar.NewRenderer(fragmentsDir); err == nil {
			s.renderer = r
			fmt.Printf("Loaded fragment templates from %s\n", fragmentsDir)
		}
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

// OpenAPI returns the generated OpenAPI description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Store exposes the feature store for the CLI subcommands.
func (s *Server) Store() feature.Store {
	return s.store
}

// Tracks exposes the track registry for the CLI subcommands.
func (s *Server) Tracks() *track.Registry {
	return s.tracks
}

func (s *Server) routes() {
	bus := feature.DefaultBus

	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	(&api.HealthHandler{}).RegisterRoutes(s.humaAPI)
	(&api.InfoHandler{DataDir: s.config.DataDir, DBOK: s.db != nil}).RegisterRoutes(s.humaAPI)
	api.NewFeatureHandler(s.store, bus).RegisterRoutes(s.humaAPI)
	api.NewDrawingHandler(s.drawing, bus).RegisterRoutes(s.humaAPI)
	api.NewScheduleHandler(s.store, s.schedule, bus).RegisterRoutes(s.humaAPI)
	api.NewTrackHandler(s.tracks, bus).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	// Editor SSE routes using Huma + Datastar SDK
	if s.renderer != nil {
		itineraryHandler := editor.NewItineraryHandler(s.store, s.schedule, s.renderer)
		itineraryHandler.RegisterRoutes(s.humaAPI)

		eventHandler := editor.NewEventHandler(s.store, s.schedule, s.renderer)
		eventHandler.RegisterRoutes(s.humaAPI)
	}

	// Multipart GPX upload stays a plain mux handler; browsers post the
	// file directly from the planner form.
	s.mux.HandleFunc("/api/v1/tracks/upload", s.handleTrackUpload)

	// Static files and raw GPX downloads
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}
	s.mux.Handle("/gpx/", http.StripPrefix("/gpx/", s.handleGPX(s.tracks.GPXDir())))

	// Page routes
	s.mux.HandleFunc("/planner", s.handlePlanner)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-trip",
		"status":  "running",
	})
}

func (s *Server) handlePlanner(w http.ResponseWriter, r *http.Request) {
	templatePath := filepath.Join(s.config.WebDir, "templates", "planner.html")
	http.ServeFile(w, r, templatePath)
}

// handleGPX serves imported GPX files with CORS headers so map clients
// on other origins can load them.
func (s *Server) handleGPX(gpxDir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		http.FileServer(http.Dir(gpxDir)).ServeHTTP(w, r)
	})
}

// handleTrackUpload handles multipart GPX file uploads from the planner.
func (s *Server) handleTrackUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		s.sseError(w, "Failed to parse upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.sseError(w, "No file provided")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".gpx" {
		s.sseError(w, "Only .gpx files are allowed")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.sseError(w, "Failed to read file: "+err.Error())
		return
	}

	trk, err := s.tracks.Import(header.Filename, data)
	if err != nil {
		s.sseError(w, "Failed to import track: "+err.Error())
		return
	}

	feature.DefaultBus.Publish(feature.Event{Resource: "tracks", Action: "created", ID: trk.ID})

	s.writeSignals(w, map[string]any{"success": "Track imported: " + trk.ID})
}

// writeSignals emits one datastar-patch-signals frame. The payload goes
// through the JSON encoder so message text cannot break the framing.
func (s *Server) writeSignals(w http.ResponseWriter, signals map[string]any) {
	data, err := json.Marshal(signals)
	if err != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprintf(w, "event: datastar-patch-signals\ndata: signals %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) sseError(w http.ResponseWriter, msg string) {
	s.writeSignals(w, map[string]any{"error": msg})
}
