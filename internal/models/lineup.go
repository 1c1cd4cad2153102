package models

import (
	"time"

	"github.com/google/uuid"
)

// Lineup is an ordered setlist of songs for one event.
type Lineup struct {
	ID        uuid.UUID  `json:"id"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	Name      string     `json:"name"`
	EventDate *time.Time `json:"event_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// LineupSong is one entry of a lineup. Positions are 1-based and
// strictly increasing within a lineup; removal leaves gaps, reorder
// rewrites the whole sequence.
type LineupSong struct {
	LineupID uuid.UUID `json:"lineup_id"`
	SongID   uuid.UUID `json:"song_id"`
	Position int       `json:"position"`
	ChartKey string    `json:"chart_key,omitempty"` // per-entry chart override
	AddedAt  time.Time `json:"added_at"`
}

// LineupSongDetail is a lineup entry joined with its song for list views.
type LineupSongDetail struct {
	LineupSong
	Title   string `json:"title"`
	Artist  string `json:"artist,omitempty"`
	SongKey string `json:"song_key,omitempty"`
	Tempo   int    `json:"tempo,omitempty"`
}
