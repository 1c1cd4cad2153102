package lineups

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aria-setlist/backend/internal/models"
)

// ErrSongAlreadyInLineup is returned when adding a song twice.
var ErrSongAlreadyInLineup = errors.New("song is already in the lineup")

// Repository handles lineup and lineup-song persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a lineups repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const lineupColumns = `id, owner_id, name, event_date, created_at, updated_at`

func scanLineup(row pgx.Row) (*models.Lineup, error) {
	var l models.Lineup
	err := row.Scan(&l.ID, &l.OwnerID, &l.Name, &l.EventDate, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListByOwner returns a user's lineups, upcoming first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Lineup, error) {
	const q = `SELECT ` + lineupColumns + ` FROM lineups WHERE owner_id = $1
		ORDER BY event_date DESC NULLS LAST, created_at DESC`
	rows, err := r.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Lineup
	for rows.Next() {
		l, err := scanLineup(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *l)
	}
	return list, rows.Err()
}

// GetByID returns a lineup by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lineup, error) {
	const q = `SELECT ` + lineupColumns + ` FROM lineups WHERE id = $1`
	l, err := scanLineup(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// Create inserts a new lineup and fills generated fields.
func (r *Repository) Create(ctx context.Context, l *models.Lineup) error {
	const q = `INSERT INTO lineups (owner_id, name, event_date)
		VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, l.OwnerID, l.Name, l.EventDate).
		Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
}

// Update rewrites a lineup's metadata.
func (r *Repository) Update(ctx context.Context, l *models.Lineup) error {
	const q = `UPDATE lineups SET name = $2, event_date = $3, updated_at = now()
		WHERE id = $1 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, l.ID, l.Name, l.EventDate).Scan(&l.UpdatedAt)
}

// Delete removes a lineup (entries cascade). Returns false when no row matched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lineups WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListSongs returns the lineup's entries joined with song metadata in
// position order. Positions may have gaps after removals; display order
// is the read-back order.
func (r *Repository) ListSongs(ctx context.Context, lineupID uuid.UUID) ([]models.LineupSongDetail, error) {
	const q = `SELECT ls.lineup_id, ls.song_id, ls.position, COALESCE(ls.chart_key,''), ls.added_at,
			s.title, COALESCE(s.artist,''), COALESCE(s.song_key,''), COALESCE(s.tempo,0)
		FROM lineup_songs ls JOIN songs s ON s.id = ls.song_id
		WHERE ls.lineup_id = $1 ORDER BY ls.position`
	rows, err := r.pool.Query(ctx, q, lineupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.LineupSongDetail
	for rows.Next() {
		var d models.LineupSongDetail
		if err := rows.Scan(&d.LineupID, &d.SongID, &d.Position, &d.ChartKey, &d.AddedAt,
			&d.Title, &d.Artist, &d.SongKey, &d.Tempo); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// AddSong appends a song at the next position. The append and the
// max-position read are one statement so concurrent adds cannot collide
// on position.
func (r *Repository) AddSong(ctx context.Context, lineupID, songID uuid.UUID) (*models.LineupSong, error) {
	const q = `INSERT INTO lineup_songs (lineup_id, song_id, position)
		SELECT $1, $2, COALESCE(MAX(position), 0) + 1 FROM lineup_songs WHERE lineup_id = $1
		RETURNING position, added_at`
	entry := &models.LineupSong{LineupID: lineupID, SongID: songID}
	var addedAt time.Time
	err := r.pool.QueryRow(ctx, q, lineupID, songID).Scan(&entry.Position, &addedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSongAlreadyInLineup
		}
		return nil, err
	}
	entry.AddedAt = addedAt
	return entry, nil
}

// RemoveSong deletes one entry. Later positions are not compacted; the
// next reorder or reload resequences display order.
func (r *Repository) RemoveSong(ctx context.Context, lineupID, songID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM lineup_songs WHERE lineup_id = $1 AND song_id = $2`, lineupID, songID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Reorder makes the proposed song order authoritative: every entry's
// position becomes its 1-based index in order. Runs as one transaction
// with the entry rows locked, so a partial reorder is never observable
// and two concurrent reorders serialize to last-commit-wins.
func (r *Repository) Reorder(ctx context.Context, lineupID uuid.UUID, order []uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT song_id FROM lineup_songs WHERE lineup_id = $1 FOR UPDATE`, lineupID)
	if err != nil {
		return err
	}
	var current []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		current = append(current, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if err := validateOrder(current, order); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, songID := range order {
		batch.Queue(`UPDATE lineup_songs SET position = $3 WHERE lineup_id = $1 AND song_id = $2`,
			lineupID, songID, i+1)
	}
	br := tx.SendBatch(ctx, batch)
	for range order {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetSongEntry returns one lineup entry, or nil when absent.
func (r *Repository) GetSongEntry(ctx context.Context, lineupID, songID uuid.UUID) (*models.LineupSong, error) {
	const q = `SELECT lineup_id, song_id, position, COALESCE(chart_key,''), added_at
		FROM lineup_songs WHERE lineup_id = $1 AND song_id = $2`
	var e models.LineupSong
	err := r.pool.QueryRow(ctx, q, lineupID, songID).
		Scan(&e.LineupID, &e.SongID, &e.Position, &e.ChartKey, &e.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SetEntryChartKey stores (or clears, with "") a lineup entry's chart
// key. Returns false when the entry does not exist.
func (r *Repository) SetEntryChartKey(ctx context.Context, lineupID, songID uuid.UUID, key string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lineup_songs SET chart_key = NULLIF($3,'') WHERE lineup_id = $1 AND song_id = $2`,
		lineupID, songID, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
