// Package track manages imported reference tracks. A reference track is a
// read-only path decoded from a GPX file; the drawing tools snap against
// it but never edit it.
package track

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/tkrajina/gpxgo/gpx"
)

// Waypoint is a named point carried alongside a track.
type Waypoint struct {
	Lat       float64 `json:"lat" doc:"Latitude"`
	Lon       float64 `json:"lon" doc:"Longitude"`
	Name      string  `json:"name,omitempty" doc:"Waypoint name"`
	Elevation float64 `json:"elevation,omitempty" doc:"Elevation in meters"`
}

// ReferenceTrack is an imported GPX path. Points are [lng, lat] in GeoJSON
// order. Tracks are immutable once imported.
type ReferenceTrack struct {
	ID        string      `json:"id" doc:"Track identifier" example:"haute_route"`
	Name      string      `json:"name" doc:"Display name" example:"Haute Route"`
	Points    []orb.Point `json:"points" doc:"Ordered track points ([lng, lat])"`
	Waypoints []Waypoint  `json:"waypoints,omitempty" doc:"Named waypoints from the GPX file"`
}

// Registry holds imported tracks. Raw GPX files live under <dataDir>/gpx
// so the registry can be rebuilt from disk at startup.
type Registry struct {
	gpxDir string
	tracks map[string]ReferenceTrack
	mu     sync.RWMutex
}

// NewRegistry creates a registry backed by <dataDir>/gpx and loads any
// GPX files already present.
func NewRegistry(dataDir string) *Registry {
	r := &Registry{
		gpxDir: filepath.Join(dataDir, "gpx"),
		tracks: make(map[string]ReferenceTrack),
	}
	r.loadFromDisk()
	return r
}

// Import parses GPX data, stores the raw file, and registers the track.
// The track ID is derived from the file name.
func (r *Registry) Import(filename string, data []byte) (ReferenceTrack, error) {
	trk, err := Parse(data)
	if err != nil {
		return ReferenceTrack{}, err
	}

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	trk.ID = generateID(base)
	if trk.ID == "" {
		return ReferenceTrack{}, fmt.Errorf("cannot derive a track ID from filename %q", filename)
	}
	if trk.Name == "" {
		trk.Name = base
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tracks[trk.ID]; exists {
		return ReferenceTrack{}, fmt.Errorf("track with ID %q already exists", trk.ID)
	}

	if err := os.MkdirAll(r.gpxDir, 0755); err != nil {
		return ReferenceTrack{}, err
	}
	if err := os.WriteFile(filepath.Join(r.gpxDir, trk.ID+".gpx"), data, 0644); err != nil {
		return ReferenceTrack{}, err
	}

	r.tracks[trk.ID] = trk
	return trk, nil
}

// Get returns a track by ID.
func (r *Registry) Get(id string) (ReferenceTrack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trk, ok := r.tracks[id]
	return trk, ok
}

// List returns all tracks sorted by ID. Sorted order keeps snap
// tie-breaking deterministic.
func (r *Registry) List() []ReferenceTrack {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ReferenceTrack, 0, len(r.tracks))
	for _, trk := range r.tracks {
		result = append(result, trk)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Delete removes a track and its stored GPX file.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tracks[id]; !exists {
		return fmt.Errorf("track %q not found", id)
	}

	delete(r.tracks, id)
	if err := os.Remove(filepath.Join(r.gpxDir, id+".gpx")); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GPXDir returns the path to the stored GPX files.
func (r *Registry) GPXDir() string {
	return r.gpxDir
}

// loadFromDisk re-parses every stored GPX file. Unparseable files are
// skipped so one bad upload cannot block startup.
func (r *Registry) loadFromDisk() {
	entries, err := os.ReadDir(r.gpxDir)
	if err != nil {
		return // Directory doesn't exist yet, start empty
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".gpx" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.gpxDir, entry.Name()))
		if err != nil {
			continue
		}

		trk, err := Parse(data)
		if err != nil {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".gpx")
		trk.ID = id
		if trk.Name == "" {
			trk.Name = id
		}
		r.tracks[id] = trk
	}
}

// Parse decodes GPX data into a ReferenceTrack. All track segments are
// concatenated in document order; GPX routes are accepted as a fallback
// when a file has no tracks. A file with no points is rejected.
func Parse(data []byte) (ReferenceTrack, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return ReferenceTrack{}, fmt.Errorf("parsing gpx: %w", err)
	}

	var trk ReferenceTrack

	for _, t := range doc.Tracks {
		if trk.Name == "" {
			trk.Name = t.Name
		}
		for _, seg := range t.Segments {
			for _, p := range seg.Points {
				trk.Points = append(trk.Points, orb.Point{p.Longitude, p.Latitude})
			}
		}
	}

	if len(trk.Points) == 0 {
		for _, rte := range doc.Routes {
			if trk.Name == "" {
				trk.Name = rte.Name
			}
			for _, p := range rte.Points {
				trk.Points = append(trk.Points, orb.Point{p.Longitude, p.Latitude})
			}
		}
	}

	for _, wp := range doc.Waypoints {
		w := Waypoint{
			Lat:  wp.Latitude,
			Lon:  wp.Longitude,
			Name: wp.Name,
		}
		if wp.Elevation.NotNull() {
			w.Elevation = wp.Elevation.Value()
		}
		trk.Waypoints = append(trk.Waypoints, w)
	}

	if len(trk.Points) == 0 {
		return ReferenceTrack{}, fmt.Errorf("gpx file contains no track or route points")
	}

	return trk, nil
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
