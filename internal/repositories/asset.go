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

const assetColumns = `id, sequence, title, subtitle, description, series_title, keywords, status, track_path, properties, created_at, updated_at, deleted_at`

// AssetRepository implements models.Repository[*models.Asset] for catalog media.
//
// Label membership lives in the asset_labels junction table and is loaded with every asset.
type AssetRepository struct {
	db *sql.DB
}

// NewAssetRepository creates a new AssetRepository with the given database connection
func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create inserts a new asset and its label membership
func (r *AssetRepository) Create(asset *models.Asset) error {
	sequence, err := NextSequence(r.db, "assets")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	asset.SetID(id)
	asset.SetSequence(sequence)

	if err := asset.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	props, err := json.Marshal(asset.Properties())
	if err != nil {
		return fmt.Errorf("failed to encode properties: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO assets (id, sequence, title, subtitle, description, series_title, keywords, status, track_path, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		id,
		sequence,
		asset.Title(),
		asset.Subtitle(),
		asset.Description(),
		asset.SeriesTitle(),
		asset.Keywords(),
		string(asset.Status()),
		asset.TrackPath(),
		string(props),
		asset.CreatedAt(),
		asset.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}

	for _, label := range asset.Labels() {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO asset_labels (asset_id, label_id, created_at) VALUES (?, ?, ?)",
			id, label.ID(), time.Now(),
		); err != nil {
			return fmt.Errorf("failed to attach label %s: %w", label.Code(), err)
		}
	}

	return tx.Commit()
}

// Get retrieves an asset by ID with its labels, excluding soft-deleted assets
func (r *AssetRepository) Get(id string) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = ? AND deleted_at IS NULL`

	asset, err := scanAsset(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrAssetNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadLabels(asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// Update modifies the catalog fields of an existing asset.
//
// Properties and labels are written through their own methods.
func (r *AssetRepository) Update(asset *models.Asset) error {
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	asset.SetUpdatedAt(now)

	query := `
		UPDATE assets
		SET title = ?, subtitle = ?, description = ?, series_title = ?, keywords = ?, status = ?, track_path = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		asset.Title(),
		asset.Subtitle(),
		asset.Description(),
		asset.SeriesTitle(),
		asset.Keywords(),
		string(asset.Status()),
		asset.TrackPath(),
		now,
		asset.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}

	return expectRow(result, "asset", asset.ID())
}

// Delete soft-deletes an asset by ID
func (r *AssetRepository) Delete(id string) error {
	query := `
		UPDATE assets
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	return expectRow(result, "asset", id)
}

// SetProperty writes a single property without touching updated_at.
// An empty value removes the property.
func (r *AssetRepository) SetProperty(assetID, key, value string) error {
	var (
		result sql.Result
		err    error
	)
	if value == "" {
		result, err = r.db.Exec(
			"UPDATE assets SET properties = json_remove(properties, '$.' || ?) WHERE id = ? AND deleted_at IS NULL",
			key, assetID,
		)
	} else {
		result, err = r.db.Exec(
			"UPDATE assets SET properties = json_set(properties, '$.' || ?, ?) WHERE id = ? AND deleted_at IS NULL",
			key, value, assetID,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to set property %s: %w", key, err)
	}

	if err := expectRow(result, "asset", assetID); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAssetNotFound, err)
	}
	return nil
}

// AddLabel attaches a label to an asset. Attaching twice is a no-op.
func (r *AssetRepository) AddLabel(assetID, labelID string) error {
	_, err := r.db.Exec(
		"INSERT OR IGNORE INTO asset_labels (asset_id, label_id, created_at) VALUES (?, ?, ?)",
		assetID, labelID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to attach label: %w", err)
	}
	return nil
}

// RemoveLabel detaches a label from an asset. Detaching an absent label is a no-op.
func (r *AssetRepository) RemoveLabel(assetID, labelID string) error {
	_, err := r.db.Exec("DELETE FROM asset_labels WHERE asset_id = ? AND label_id = ?", assetID, labelID)
	if err != nil {
		return fmt.Errorf("failed to detach label: %w", err)
	}
	return nil
}

// List retrieves all assets matching the given criteria, excluding soft-deleted assets.
//
// Supported criteria: "status" (string), "labels" ([]string codes, all required),
// "with_property" and "without_property" (property key), "ids" ([]string).
func (r *AssetRepository) List(criteria map[string]any) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if codes, ok := criteria["labels"].([]string); ok {
		for _, code := range codes {
			query += ` AND EXISTS (
				SELECT 1 FROM asset_labels al JOIN labels l ON l.id = al.label_id
				WHERE al.asset_id = assets.id AND l.code = ? AND l.deleted_at IS NULL
			)`
			args = append(args, code)
		}
	}

	if key, ok := criteria["with_property"].(string); ok && key != "" {
		query += " AND COALESCE(json_extract(properties, '$.' || ?), '') != ''"
		args = append(args, key)
	}

	if key, ok := criteria["without_property"].(string); ok && key != "" {
		query += " AND COALESCE(json_extract(properties, '$.' || ?), '') = ''"
		args = append(args, key)
	}

	if ids, ok := criteria["ids"].([]string); ok {
		if len(ids) == 0 {
			return nil, nil
		}
		query += " AND id IN (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}

	var assets []*models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, asset := range assets {
		if err := r.loadLabels(asset); err != nil {
			return nil, err
		}
	}

	return assets, nil
}

// loadLabels replaces the asset's labels with its stored membership
func (r *AssetRepository) loadLabels(asset *models.Asset) error {
	query := `
		SELECT l.id, l.sequence, l.code, l.title, l.parent_id, l.path, l.playlist_id, l.metatag, l.display, l.created_at, l.updated_at, l.deleted_at
		FROM asset_labels al
		JOIN labels l ON l.id = al.label_id
		WHERE al.asset_id = ? AND l.deleted_at IS NULL
		ORDER BY l.sequence ASC
	`

	rows, err := r.db.Query(query, asset.ID())
	if err != nil {
		return fmt.Errorf("failed to query asset labels: %w", err)
	}
	defer rows.Close()

	var labels []*models.Label
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return err
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	asset.SetLabels(labels)
	return nil
}

// scanAsset scans an asset from a [sql.Row] or [sql.Rows] without its labels
func scanAsset(s scanner) (*models.Asset, error) {
	var (
		id          string
		sequence    int
		title       string
		subtitle    string
		description string
		seriesTitle string
		keywords    string
		status      string
		trackPath   string
		properties  string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := s.Scan(&id, &sequence, &title, &subtitle, &description, &seriesTitle, &keywords, &status, &trackPath, &properties, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}

	props := map[string]string{}
	if properties != "" {
		if err := json.Unmarshal([]byte(properties), &props); err != nil {
			return nil, fmt.Errorf("failed to decode properties of asset %s: %w", id, err)
		}
	}

	asset := models.NewAsset(sequence, title, trackPath)
	asset.SetID(id)
	asset.SetSubtitle(subtitle)
	asset.SetDescription(description)
	asset.SetSeriesTitle(seriesTitle)
	asset.SetKeywords(keywords)
	asset.SetStatus(models.AssetStatus(status))
	for k, v := range props {
		asset.SetProperty(k, v)
	}
	asset.SetCreatedAt(createdAt)
	asset.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		asset.SetDeletedAt(&deletedAt.Time)
	}

	return asset, nil
}

// placeholders returns n comma separated bind markers
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2)
	for i := range n {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
