package models

import (
	"time"

	"github.com/google/uuid"
)

// Song is a catalog entry owned by one user (the host of its catalog).
type Song struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist,omitempty"`
	SongKey   string    `json:"song_key,omitempty"` // musical key, e.g. "Bm"
	Tempo     int       `json:"tempo,omitempty"`
	ChartKey  string    `json:"chart_key,omitempty"` // S3 object key of the chart file
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
