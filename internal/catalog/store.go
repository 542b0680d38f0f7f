package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"voxview/internal/config"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Store manages volume metadata persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the catalog database location.
func (s *Store) Path() string { return s.path }

// PutVolume inserts or replaces the record for a decoded dataset.
func (s *Store) PutVolume(ctx context.Context, rec VolumeRecord) error {
	if rec.DataID == "" {
		return errors.New("catalog: data ID required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO volumes (
            data_id, name, data_type, modality, study_uid, series_uid,
            slice_count, window_center, window_width, patient_name, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(data_id) DO UPDATE SET
            name = excluded.name,
            data_type = excluded.data_type,
            modality = excluded.modality,
            study_uid = excluded.study_uid,
            series_uid = excluded.series_uid,
            slice_count = excluded.slice_count,
            window_center = excluded.window_center,
            window_width = excluded.window_width,
            patient_name = excluded.patient_name`,
		rec.DataID,
		rec.Name,
		string(rec.DataType),
		rec.Modality,
		rec.StudyUID,
		rec.SeriesUID,
		nullableInt(rec.SliceCount),
		nullableFloat(rec.WindowCenter),
		nullableFloat(rec.WindowWidth),
		rec.PatientName,
		now,
	)
	if err != nil {
		return fmt.Errorf("put volume: %w", err)
	}
	return nil
}

// GetVolume fetches one record by data ID.
func (s *Store) GetVolume(ctx context.Context, dataID string) (VolumeRecord, error) {
	row := s.db.QueryRowContext(ctx, selectVolumes+" WHERE data_id = ?", dataID)
	rec, err := scanVolume(row)
	if errors.Is(err, sql.ErrNoRows) {
		return VolumeRecord{}, fmt.Errorf("%w: volume %s", ErrNotFound, dataID)
	}
	return rec, err
}

// VolumesByStudy lists records sharing a StudyInstanceUID in insertion order.
func (s *Store) VolumesByStudy(ctx context.Context, studyUID string) ([]VolumeRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectVolumes+" WHERE study_uid = ? ORDER BY rowid", studyUID)
	if err != nil {
		return nil, fmt.Errorf("query volumes by study: %w", err)
	}
	defer rows.Close()
	return collectVolumes(rows)
}

// AllVolumes lists every record in insertion order.
func (s *Store) AllVolumes(ctx context.Context) ([]VolumeRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectVolumes+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("query volumes: %w", err)
	}
	defer rows.Close()
	return collectVolumes(rows)
}

// SetPrimarySelection records the dataset chosen as the display subject.
func (s *Store) SetPrimarySelection(ctx context.Context, dataID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO primary_selection (id, data_id) VALUES (1, ?)
         ON CONFLICT(id) DO UPDATE SET data_id = excluded.data_id`,
		dataID,
	)
	if err != nil {
		return fmt.Errorf("set primary selection: %w", err)
	}
	return nil
}

// PrimarySelection returns the current primary data ID, or ErrNotFound when
// nothing has been selected yet.
func (s *Store) PrimarySelection(ctx context.Context) (string, error) {
	var dataID string
	err := s.db.QueryRowContext(ctx, "SELECT data_id FROM primary_selection WHERE id = 1").Scan(&dataID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: primary selection", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read primary selection: %w", err)
	}
	return dataID, nil
}

// Remove deletes a volume record. The primary selection row cascades away
// when it points at the removed volume.
func (s *Store) Remove(ctx context.Context, dataID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM volumes WHERE data_id = ?", dataID); err != nil {
		return fmt.Errorf("remove volume: %w", err)
	}
	return nil
}

// AddLayer records a secondary volume overlaid on a primary. Duplicate
// registrations are kept as-is.
func (s *Store) AddLayer(ctx context.Context, primaryID, layerID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO layers (parent_id, layer_id) VALUES (?, ?)", primaryID, layerID)
	if err != nil {
		return fmt.Errorf("add layer: %w", err)
	}
	return nil
}

// Layers lists the volumes layered on a primary in registration order.
func (s *Store) Layers(ctx context.Context, primaryID string) ([]string, error) {
	return s.collectIDs(ctx,
		"SELECT layer_id FROM layers WHERE parent_id = ? ORDER BY rowid", primaryID)
}

// ConvertImageToLabelmap records a segmentation image as a labelmap derived
// from a primary. Duplicate registrations are kept as-is.
func (s *Store) ConvertImageToLabelmap(ctx context.Context, primaryID, imageID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO segment_groups (parent_id, image_id) VALUES (?, ?)", primaryID, imageID)
	if err != nil {
		return fmt.Errorf("convert image to labelmap: %w", err)
	}
	return nil
}

// SegmentGroups lists the labelmaps derived from a primary in registration
// order.
func (s *Store) SegmentGroups(ctx context.Context, primaryID string) ([]string, error) {
	return s.collectIDs(ctx,
		"SELECT image_id FROM segment_groups WHERE parent_id = ? ORDER BY rowid", primaryID)
}

func (s *Store) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

const selectVolumes = `SELECT data_id, name, data_type, modality, study_uid, series_uid,
    slice_count, window_center, window_width, patient_name FROM volumes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVolume(row rowScanner) (VolumeRecord, error) {
	var rec VolumeRecord
	var dataType string
	var sliceCount sql.NullInt64
	var windowCenter, windowWidth sql.NullFloat64
	err := row.Scan(
		&rec.DataID,
		&rec.Name,
		&dataType,
		&rec.Modality,
		&rec.StudyUID,
		&rec.SeriesUID,
		&sliceCount,
		&windowCenter,
		&windowWidth,
		&rec.PatientName,
	)
	if err != nil {
		return VolumeRecord{}, err
	}
	rec.DataType = DataType(dataType)
	if sliceCount.Valid {
		v := int(sliceCount.Int64)
		rec.SliceCount = &v
	}
	if windowCenter.Valid {
		v := windowCenter.Float64
		rec.WindowCenter = &v
	}
	if windowWidth.Valid {
		v := windowWidth.Float64
		rec.WindowWidth = &v
	}
	return rec, nil
}

func collectVolumes(rows *sql.Rows) ([]VolumeRecord, error) {
	var records []VolumeRecord
	for rows.Next() {
		rec, err := scanVolume(rows)
		if err != nil {
			return nil, fmt.Errorf("scan volume: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volumes: %w", err)
	}
	return records, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
