package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/shared"
)

const publicationColumns = `id, sequence, asset_id, video_id, status, embed, link, playlists, forced, updating_playlists, metadata_synced_at, created_at, updated_at`

// PublicationRepository persists [models.PublicationRecord] values.
//
// Records are upserted on every state change and never deleted. The unique index on asset_id
// keeps one record per asset.
type PublicationRepository struct {
	db *sql.DB
}

// NewPublicationRepository creates a new PublicationRepository with the given database connection
func NewPublicationRepository(db *sql.DB) *PublicationRepository {
	return &PublicationRepository{db: db}
}

// Create inserts a record that has not been stored yet
func (r *PublicationRepository) Create(record *models.PublicationRecord) error {
	if record.ID() != "" {
		return fmt.Errorf("%w: publication %s already has an id", shared.ErrInvalidInput, record.ID())
	}
	return r.Save(record)
}

// Save inserts or updates a record.
// New records get an id and sequence before they are written.
func (r *PublicationRepository) Save(record *models.PublicationRecord) error {
	if record.ID() == "" {
		sequence, err := NextSequence(r.db, "publications")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		record.SetID(shared.GenerateID())
		record.SetSequence(sequence)
	}

	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	playlists, err := json.Marshal(record.Playlists())
	if err != nil {
		return fmt.Errorf("failed to encode playlists: %w", err)
	}

	now := time.Now()
	record.SetUpdatedAt(now)

	var synced any
	if t := record.MetadataSyncedAt(); t != nil {
		synced = *t
	}

	query := `
		INSERT INTO publications (id, sequence, asset_id, video_id, status, embed, link, playlists, forced, updating_playlists, metadata_synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			video_id = excluded.video_id,
			status = excluded.status,
			embed = excluded.embed,
			link = excluded.link,
			playlists = excluded.playlists,
			forced = excluded.forced,
			updating_playlists = excluded.updating_playlists,
			metadata_synced_at = excluded.metadata_synced_at,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Exec(query,
		record.ID(),
		record.Sequence(),
		record.AssetID(),
		record.VideoID(),
		string(record.Status()),
		record.Embed(),
		record.Link(),
		string(playlists),
		record.Force(),
		record.UpdatingPlaylists(),
		synced,
		record.CreatedAt(),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save publication: %w", err)
	}

	return nil
}

// Get retrieves a record by ID
func (r *PublicationRepository) Get(id string) (*models.PublicationRecord, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByAssetID retrieves the record of an asset
func (r *PublicationRepository) GetByAssetID(assetID string) (*models.PublicationRecord, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications WHERE asset_id = ?`
	return r.scanOne(r.db.QueryRow(query, assetID), "asset "+assetID)
}

// ListByVideoIDs retrieves the records whose video id is any of videoIDs
func (r *PublicationRepository) ListByVideoIDs(videoIDs ...string) ([]*models.PublicationRecord, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(videoIDs))
	for _, id := range videoIDs {
		args = append(args, id)
	}

	query := `SELECT ` + publicationColumns + ` FROM publications WHERE video_id IN (` + placeholders(len(videoIDs)) + `) ORDER BY sequence ASC`
	return r.query(query, args...)
}

// ListByStatus retrieves the records in any of statuses
func (r *PublicationRepository) ListByStatus(statuses ...models.Status) ([]*models.PublicationRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, string(s))
	}

	query := `SELECT ` + publicationColumns + ` FROM publications WHERE status IN (` + placeholders(len(statuses)) + `) ORDER BY sequence ASC`
	return r.query(query, args...)
}

// List retrieves all records matching the given criteria.
//
// Supported criteria: "status" (string), "asset_id" (string), "updating" (bool).
func (r *PublicationRepository) List(criteria map[string]any) ([]*models.PublicationRecord, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications WHERE 1 = 1`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if assetID, ok := criteria["asset_id"].(string); ok && assetID != "" {
		query += " AND asset_id = ?"
		args = append(args, assetID)
	}

	if updating, ok := criteria["updating"].(bool); ok {
		query += " AND updating_playlists = ?"
		args = append(args, updating)
	}

	query += " ORDER BY sequence ASC"
	return r.query(query, args...)
}

// CountByStatus returns the number of records per status
func (r *PublicationRepository) CountByStatus() (map[models.Status]int, error) {
	rows, err := r.db.Query("SELECT status, COUNT(*) FROM publications GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count publications: %w", err)
	}
	defer rows.Close()

	counts := map[models.Status]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.Status(status)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

func (r *PublicationRepository) query(query string, args ...any) ([]*models.PublicationRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query publications: %w", err)
	}
	defer rows.Close()

	var records []*models.PublicationRecord
	for rows.Next() {
		record, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// scanOne scans a single row into a [models.PublicationRecord]
func (r *PublicationRepository) scanOne(row *sql.Row, key string) (*models.PublicationRecord, error) {
	record, err := scanPublication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRecordNotFound, key)
	}
	return record, err
}

func scanPublication(s scanner) (*models.PublicationRecord, error) {
	var (
		id        string
		sequence  int
		assetID   string
		videoID   string
		status    string
		embed     string
		link      string
		playlists string
		force     bool
		updating  bool
		syncedAt  sql.NullTime
		createdAt time.Time
		updatedAt time.Time
	)

	err := s.Scan(&id, &sequence, &assetID, &videoID, &status, &embed, &link, &playlists, &force, &updating, &syncedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan publication: %w", err)
	}

	items := map[string]string{}
	if playlists != "" {
		if err := json.Unmarshal([]byte(playlists), &items); err != nil {
			return nil, fmt.Errorf("failed to decode playlists of publication %s: %w", id, err)
		}
	}

	record := models.RestorePublicationRecord(sequence, assetID, videoID, models.Status(status), embed, link, items, force, updating)
	record.SetID(id)
	record.SetCreatedAt(createdAt)
	record.SetUpdatedAt(updatedAt)
	if syncedAt.Valid {
		record.SetMetadataSyncedAt(&syncedAt.Time)
	}

	return record, nil
}
