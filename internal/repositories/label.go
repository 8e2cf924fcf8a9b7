package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/shared"
)

const labelColumns = `id, sequence, code, title, parent_id, path, playlist_id, metatag, display, created_at, updated_at, deleted_at`

// LabelRepository implements models.Repository[*models.Label] for the tag hierarchy.
//
// Playlist bindings are written with a compare-and-swap so concurrent binders converge on one playlist.
type LabelRepository struct {
	db *sql.DB
}

// NewLabelRepository creates a new LabelRepository with the given database connection
func NewLabelRepository(db *sql.DB) *LabelRepository {
	return &LabelRepository{db: db}
}

// Create inserts a new label into the database with generated ID and sequence
func (r *LabelRepository) Create(label *models.Label) error {
	sequence, err := NextSequence(r.db, "labels")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	label.SetID(id)
	label.SetSequence(sequence)

	if err := label.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if existing, err := r.GetByCode(label.Code()); err == nil {
		return fmt.Errorf("%w: %s (%s)", shared.ErrLabelExists, existing.Code(), existing.ID())
	} else if !errors.Is(err, shared.ErrLabelNotFound) {
		return err
	}

	query := `
		INSERT INTO labels (id, sequence, code, title, parent_id, path, playlist_id, metatag, display, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		label.Code(),
		label.Title(),
		nullable(label.ParentID()),
		label.Path(),
		nullable(label.PlaylistID()),
		label.Metatag(),
		label.Display(),
		label.CreatedAt(),
		label.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert label: %w", err)
	}

	return nil
}

// Get retrieves a label by ID, excluding soft-deleted labels
func (r *LabelRepository) Get(id string) (*models.Label, error) {
	query := `SELECT ` + labelColumns + ` FROM labels WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByCode retrieves a label by its unique code
func (r *LabelRepository) GetByCode(code string) (*models.Label, error) {
	query := `SELECT ` + labelColumns + ` FROM labels WHERE code = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, code), code)
}

// GetByPlaylistID retrieves the label bound to a remote playlist
func (r *LabelRepository) GetByPlaylistID(playlistID string) (*models.Label, error) {
	query := `SELECT ` + labelColumns + ` FROM labels WHERE playlist_id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, playlistID), "playlist "+playlistID)
}

// Update modifies the descriptive fields of an existing label.
//
// The playlist binding is only written through [LabelRepository.BindPlaylist].
func (r *LabelRepository) Update(label *models.Label) error {
	if err := label.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	label.SetUpdatedAt(now)

	query := `
		UPDATE labels
		SET title = ?, metatag = ?, display = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, label.Title(), label.Metatag(), label.Display(), now, label.ID())
	if err != nil {
		return fmt.Errorf("failed to update label: %w", err)
	}

	return expectRow(result, "label", label.ID())
}

// BindPlaylist binds playlistID to the label unless another binding won first.
//
// Returns the playlist id now bound to the label, which differs from playlistID when the label was already bound.
func (r *LabelRepository) BindPlaylist(labelID, playlistID string) (string, error) {
	query := `
		UPDATE labels
		SET playlist_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND (playlist_id IS NULL OR playlist_id = '')
	`

	result, err := r.db.Exec(query, playlistID, time.Now(), labelID)
	if err != nil {
		return "", fmt.Errorf("failed to bind playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 1 {
		return playlistID, nil
	}

	current, err := r.Get(labelID)
	if err != nil {
		return "", err
	}
	return current.PlaylistID(), nil
}

// Delete soft-deletes a label by ID
func (r *LabelRepository) Delete(id string) error {
	query := `
		UPDATE labels
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete label: %w", err)
	}

	return expectRow(result, "label", id)
}

// List retrieves all labels matching the given criteria, excluding soft-deleted labels.
//
// Supported criteria: "parent_id" (string), "under" (code of an ancestor), "bound" (bool).
func (r *LabelRepository) List(criteria map[string]any) ([]*models.Label, error) {
	query := `SELECT ` + labelColumns + ` FROM labels WHERE deleted_at IS NULL`
	args := []any{}

	if parentID, ok := criteria["parent_id"].(string); ok && parentID != "" {
		query += " AND parent_id = ?"
		args = append(args, parentID)
	}

	if under, ok := criteria["under"].(string); ok && under != "" {
		query += " AND ('" + models.PathSeparator + "' || path) LIKE ? AND code != ?"
		args = append(args, "%"+models.PathSeparator+under+models.PathSeparator+"%", under)
	}

	if bound, ok := criteria["bound"].(bool); ok {
		if bound {
			query += " AND playlist_id IS NOT NULL AND playlist_id != ''"
		} else {
			query += " AND (playlist_id IS NULL OR playlist_id = '')"
		}
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	var labels []*models.Label
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return labels, nil
}

// scanOne scans a single row into a [models.Label]
func (r *LabelRepository) scanOne(row *sql.Row, key string) (*models.Label, error) {
	label, err := scanLabel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrLabelNotFound, key)
	}
	return label, err
}

// scanLabel scans a label from a [sql.Row] or [sql.Rows]
func scanLabel(s scanner) (*models.Label, error) {
	var (
		id         string
		sequence   int
		code       string
		title      string
		parentID   sql.NullString
		path       string
		playlistID sql.NullString
		metatag    bool
		display    bool
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := s.Scan(&id, &sequence, &code, &title, &parentID, &path, &playlistID, &metatag, &display, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan label: %w", err)
	}

	label := models.RestoreLabel(sequence, code, title, parentID.String, path, playlistID.String, metatag, display)
	label.SetID(id)
	label.SetCreatedAt(createdAt)
	label.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		label.SetDeletedAt(&deletedAt.Time)
	}

	return label, nil
}
