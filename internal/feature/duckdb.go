package feature

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

// DuckStore persists features in a DuckDB table. Geometry and properties
// are stored as JSON columns so the GeoJSON interchange form crosses the
// boundary unchanged.
type DuckStore struct {
	db *sql.DB
}

// NewDuckStore wraps an open DuckDB connection. The features table is
// expected to exist (bootstrapped by internal/db).
func NewDuckStore(db *sql.DB) *DuckStore {
	return &DuckStore{db: db}
}

func (s *DuckStore) Create(ctx context.Context, geometry *geojson.Geometry, props Props) (Feature, error) {
	if geometry == nil {
		return Feature{}, fmt.Errorf("geometry is required")
	}
	if props == nil {
		return Feature{}, fmt.Errorf("properties are required")
	}

	now := time.Now().UTC()
	f := Feature{
		ID:         uuid.NewString(),
		Geometry:   geometry,
		Properties: props,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	geomJSON, err := json.Marshal(f.Geometry)
	if err != nil {
		return Feature{}, err
	}
	propsJSON, err := json.Marshal(f.Properties)
	if err != nil {
		return Feature{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO features (id, geometry, properties, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		f.ID, string(geomJSON), string(propsJSON), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return Feature{}, fmt.Errorf("inserting feature: %w", err)
	}
	return f, nil
}

func (s *DuckStore) Get(ctx context.Context, id string) (Feature, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, geometry, properties, created_at, updated_at FROM features WHERE id = ?`, id)
	f, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Feature{}, fmt.Errorf("feature %q not found", id)
	}
	return f, err
}

func (s *DuckStore) List(ctx context.Context) ([]Feature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, geometry, properties, created_at, updated_at FROM features`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var features []Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

func (s *DuckStore) Update(ctx context.Context, id string, fields UpdateFields) (Feature, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return Feature{}, err
	}
	if err := applyFields(&f, fields); err != nil {
		return Feature{}, err
	}

	if err := s.writeProps(ctx, s.db, f); err != nil {
		return Feature{}, err
	}
	return f, nil
}

// BatchUpdate applies all items in one transaction.
func (s *DuckStore) BatchUpdate(ctx context.Context, items []BatchItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		row := tx.QueryRowContext(ctx,
			`SELECT id, geometry, properties, created_at, updated_at FROM features WHERE id = ?`, item.ID)
		f, err := scanFeature(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("feature %q not found", item.ID)
		}
		if err != nil {
			return err
		}
		if err := applyFields(&f, item.Fields); err != nil {
			return err
		}
		if err := s.writeProps(ctx, tx, f); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *DuckStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM features WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("feature %q not found", id)
	}
	return nil
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *DuckStore) writeProps(ctx context.Context, ex execer, f Feature) error {
	propsJSON, err := json.Marshal(f.Properties)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		`UPDATE features SET properties = ?, updated_at = ? WHERE id = ?`,
		string(propsJSON), f.UpdatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("updating feature %s: %w", f.ID, err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeature(row rowScanner) (Feature, error) {
	var (
		f         Feature
		geomJSON  string
		propsJSON string
	)
	if err := row.Scan(&f.ID, &geomJSON, &propsJSON, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return Feature{}, err
	}

	geometry, err := geojson.UnmarshalGeometry([]byte(geomJSON))
	if err != nil {
		return Feature{}, fmt.Errorf("decoding geometry for %s: %w", f.ID, err)
	}
	props, err := UnmarshalProps([]byte(propsJSON))
	if err != nil {
		return Feature{}, fmt.Errorf("decoding properties for %s: %w", f.ID, err)
	}

	f.Geometry = geometry
	f.Properties = props
	return f, nil
}

var _ Store = (*DuckStore)(nil)
