package songs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aria-setlist/backend/internal/models"
)

// Repository handles song persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a songs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const songColumns = `id, owner_id, title, COALESCE(artist,''), COALESCE(song_key,''), COALESCE(tempo,0), COALESCE(chart_key,''), created_at, updated_at`

func scanSong(row pgx.Row) (*models.Song, error) {
	var s models.Song
	err := row.Scan(&s.ID, &s.OwnerID, &s.Title, &s.Artist, &s.SongKey, &s.Tempo, &s.ChartKey, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByOwner returns all songs owned by a user, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Song, error) {
	const q = `SELECT ` + songColumns + ` FROM songs WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// GetByID returns a song by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Song, error) {
	const q = `SELECT ` + songColumns + ` FROM songs WHERE id = $1`
	s, err := scanSong(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Create inserts a new song and fills generated fields.
func (r *Repository) Create(ctx context.Context, s *models.Song) error {
	const q = `INSERT INTO songs (owner_id, title, artist, song_key, tempo)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,0))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.OwnerID, s.Title, s.Artist, s.SongKey, s.Tempo).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// Update rewrites a song's metadata.
func (r *Repository) Update(ctx context.Context, s *models.Song) error {
	const q = `UPDATE songs SET title = $2, artist = NULLIF($3,''), song_key = NULLIF($4,''),
		tempo = NULLIF($5,0), updated_at = now() WHERE id = $1 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, s.ID, s.Title, s.Artist, s.SongKey, s.Tempo).Scan(&s.UpdatedAt)
}

// Delete removes a song. Returns false when no row matched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetChartKey stores (or clears, with "") the song's chart object key.
func (r *Repository) SetChartKey(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE songs SET chart_key = NULLIF($2,''), updated_at = now() WHERE id = $1`, id, key)
	return err
}
