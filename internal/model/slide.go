package model

import (
	"encoding/json"
	"time"
)

// Slide is opaque to the engine; only its id is ever resolved.
type Slide struct {
	ID        int             `db:"id"          json:"id"`
	Name      string          `db:"name"        json:"name"`
	Type      string          `db:"type"        json:"type"`
	Body      json.RawMessage `db:"body"        json:"body"`
	CreatedBy int             `db:"created_by"  json:"created_by"`
	CreatedAt time.Time       `db:"created_at"  json:"created_at"`
}
