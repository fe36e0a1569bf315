package feature

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

// UpdateFields is a partial feature update. Nil pointers leave the field
// unchanged; ClearArrival removes the feature from the timeline.
type UpdateFields struct {
	Name                 *string    `json:"name,omitempty" doc:"New display name"`
	Notes                *string    `json:"notes,omitempty" doc:"New notes"`
	EstimatedArrival     *time.Time `json:"estimated_arrival,omitempty" doc:"New arrival time"`
	ClearArrival         bool       `json:"clear_arrival,omitempty" doc:"Remove the arrival time"`
	EstimatedDurationMin *int       `json:"estimated_duration_minutes,omitempty" minimum:"0" doc:"New duration in minutes"`
}

// BatchItem is one entry of a batch update.
type BatchItem struct {
	ID     string       `json:"id" required:"true" doc:"Feature ID"`
	Fields UpdateFields `json:"fields" doc:"Partial update to apply"`
}

// Store is the persistence contract the drawing controller and the
// scheduling engine work against. Any failure aborts the calling
// operation and leaves prior state visible.
type Store interface {
	Create(ctx context.Context, geometry *geojson.Geometry, props Props) (Feature, error)
	Get(ctx context.Context, id string) (Feature, error)
	List(ctx context.Context) ([]Feature, error)
	Update(ctx context.Context, id string, fields UpdateFields) (Feature, error)
	BatchUpdate(ctx context.Context, items []BatchItem) error
	Delete(ctx context.Context, id string) error
}

// applyFields mutates a feature in place with the given partial update.
// Schedule fields require a schedulable category.
func applyFields(f *Feature, fields UpdateFields) error {
	base := f.Properties.Base()
	if fields.Name != nil {
		base.Name = *fields.Name
	}
	if fields.Notes != nil {
		base.Notes = *fields.Notes
	}

	if fields.EstimatedArrival != nil || fields.ClearArrival || fields.EstimatedDurationMin != nil {
		sched := f.Properties.Schedule()
		if sched == nil {
			return fmt.Errorf("feature %s (%s) cannot be scheduled", f.ID, base.Category)
		}
		if fields.ClearArrival {
			sched.EstimatedArrival = nil
		} else if fields.EstimatedArrival != nil {
			t := *fields.EstimatedArrival
			sched.EstimatedArrival = &t
		}
		if fields.EstimatedDurationMin != nil {
			d := *fields.EstimatedDurationMin
			sched.EstimatedDurationMin = &d
		}
	}

	f.UpdatedAt = time.Now().UTC()
	return nil
}

// cloneFeature deep-copies a feature through its JSON form so callers
// never share property pointers with the store.
func cloneFeature(f Feature) (Feature, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return Feature{}, err
	}
	var clone Feature
	if err := json.Unmarshal(data, &clone); err != nil {
		return Feature{}, err
	}
	return clone, nil
}

// FileStore keeps features in memory and persists them as JSON in the
// data directory.
type FileStore struct {
	dataDir  string
	features map[string]Feature
	mu       sync.RWMutex
}

// NewFileStore creates a file store and loads any persisted features.
func NewFileStore(dataDir string) *FileStore {
	s := &FileStore{
		dataDir:  dataDir,
		features: make(map[string]Feature),
	}
	s.loadFromDisk()
	return s
}

// Create persists a new feature and returns it with its generated ID.
func (s *FileStore) Create(ctx context.Context, geometry *geojson.Geometry, props Props) (Feature, error) {
	if geometry == nil {
		return Feature{}, fmt.Errorf("geometry is required")
	}
	if props == nil {
		return Feature{}, fmt.Errorf("properties are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	f := Feature{
		ID:         uuid.NewString(),
		Geometry:   geometry,
		Properties: props,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	clone, err := cloneFeature(f)
	if err != nil {
		return Feature{}, err
	}

	s.features[f.ID] = clone
	if err := s.saveToDisk(); err != nil {
		delete(s.features, f.ID)
		return Feature{}, err
	}
	return f, nil
}

// Get returns a feature by ID.
func (s *FileStore) Get(ctx context.Context, id string) (Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.features[id]
	if !ok {
		return Feature{}, fmt.Errorf("feature %q not found", id)
	}
	return cloneFeature(f)
}

// List returns all features. Order carries no meaning; the scheduling
// engine re-sorts by arrival time.
func (s *FileStore) List(ctx context.Context) ([]Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Feature, 0, len(s.features))
	for _, f := range s.features {
		clone, err := cloneFeature(f)
		if err != nil {
			return nil, err
		}
		result = append(result, clone)
	}
	return result, nil
}

// Update applies a partial update to one feature.
func (s *FileStore) Update(ctx context.Context, id string, fields UpdateFields) (Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.features[id]
	if !ok {
		return Feature{}, fmt.Errorf("feature %q not found", id)
	}

	updated, err := cloneFeature(f)
	if err != nil {
		return Feature{}, err
	}
	if err := applyFields(&updated, fields); err != nil {
		return Feature{}, err
	}

	s.features[id] = updated
	if err := s.saveToDisk(); err != nil {
		s.features[id] = f
		return Feature{}, err
	}
	return cloneFeature(updated)
}

// BatchUpdate applies all items or none of them.
func (s *FileStore) BatchUpdate(ctx context.Context, items []BatchItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]Feature, len(items))
	for _, item := range items {
		f, ok := s.features[item.ID]
		if !ok {
			return fmt.Errorf("feature %q not found", item.ID)
		}
		updated, err := cloneFeature(f)
		if err != nil {
			return err
		}
		if err := applyFields(&updated, item.Fields); err != nil {
			return err
		}
		staged[item.ID] = updated
	}

	backup := make(map[string]Feature, len(staged))
	for id, f := range staged {
		backup[id] = s.features[id]
		s.features[id] = f
	}
	if err := s.saveToDisk(); err != nil {
		for id, f := range backup {
			s.features[id] = f
		}
		return err
	}
	return nil
}

// Delete removes a feature.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.features[id]
	if !ok {
		return fmt.Errorf("feature %q not found", id)
	}

	delete(s.features, id)
	if err := s.saveToDisk(); err != nil {
		s.features[id] = f
		return err
	}
	return nil
}

// configFile returns the path to the features file.
func (s *FileStore) configFile() string {
	return filepath.Join(s.dataDir, "features.json")
}

// loadFromDisk loads persisted features.
func (s *FileStore) loadFromDisk() {
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return // File doesn't exist yet, start empty
	}

	var features map[string]Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return // Invalid JSON, start empty
	}

	s.features = features
}

// saveToDisk persists features to disk.
func (s *FileStore) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.features, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.configFile(), data, 0644)
}

var _ Store = (*FileStore)(nil)
