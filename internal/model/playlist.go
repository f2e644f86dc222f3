package model

import "time"

type Playlist struct {
	ID          int            `db:"id"           json:"id"`
	Name        string         `db:"name"         json:"name"`
	Description *string        `db:"description"  json:"description,omitempty"`
	CreatedBy   int            `db:"created_by"   json:"created_by"`
	CreatedAt   time.Time      `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"   json:"updated_at"`
	Items       []PlaylistItem `db:"-"            json:"items"`
}

type PlaylistItem struct {
	ID         int       `db:"id"                 json:"id"`
	PlaylistID int       `db:"playlist_id"        json:"playlist_id"`
	SlideID    int       `db:"slide_id"           json:"slide_id"`
	Position   int       `db:"position"           json:"position"`
	Duration   int       `db:"duration"           json:"duration"`
	Predicate  Predicate `db:"schedule_predicate" json:"schedule_predicate"`
	CreatedAt  time.Time `db:"created_at"         json:"created_at"`
}
