package model

import "time"

// Overrides are the two operator-controlled slots every target carries.
// The manual slot is sticky; the urgent slot is only live inside
// [UrgentStartsAt, UrgentExpiresAt) and is never cleared on expiry.
type Overrides struct {
	ActiveSlideID   *int       `db:"active_slide_id"   json:"active_slide_id"`
	UrgentSlideID   *int       `db:"urgent_slide_id"   json:"urgent_slide_id"`
	UrgentStartsAt  *time.Time `db:"urgent_starts_at"  json:"urgent_starts_at"`
	UrgentExpiresAt *time.Time `db:"urgent_expires_at" json:"urgent_expires_at"`
}

// UrgentActive reports whether the urgent slot is live at now.
func (o Overrides) UrgentActive(now time.Time) bool {
	if o.UrgentSlideID == nil || o.UrgentStartsAt == nil || o.UrgentExpiresAt == nil {
		return false
	}
	return !now.Before(*o.UrgentStartsAt) && now.Before(*o.UrgentExpiresAt)
}

// Screen represents a display device in the system.
type Screen struct {
	ID                int       `db:"id"                  json:"id"`
	DeviceID          *string   `db:"device_id"           json:"device_id"`
	Name              string    `db:"name"                json:"name"`
	Location          *string   `db:"location"            json:"location"`
	Timezone          string    `db:"timezone"            json:"timezone"`
	GroupID           *int      `db:"group_id"            json:"group_id"`
	DefaultPlaylistID *int      `db:"default_playlist_id" json:"default_playlist_id"`
	CreatedBy         int       `db:"created_by"          json:"created_by"`
	CreatedAt         time.Time `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"          json:"updated_at"`
	Overrides
}

func (s Screen) Target() Target { return ScreenTarget(s.ID) }

// Zone resolves the screen's IANA zone, falling back to fallback when
// the stored name is empty or unknown.
func (s Screen) Zone(fallback *time.Location) *time.Location {
	if s.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

type ScreenGroup struct {
	ID                int       `db:"id"                  json:"id"`
	Name              string    `db:"name"                json:"name"`
	Description       *string   `db:"description"         json:"description"`
	DefaultPlaylistID *int      `db:"default_playlist_id" json:"default_playlist_id"`
	CreatedBy         int       `db:"created_by"          json:"created_by"`
	CreatedAt         time.Time `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"          json:"updated_at"`
	Overrides
}

func (g ScreenGroup) Target() Target { return GroupTarget(g.ID) }

// UrgentTarget is a row of the "currently urgent" listing.
type UrgentTarget struct {
	Target
	Name            string    `db:"name"              json:"name"`
	UrgentSlideID   int       `db:"urgent_slide_id"   json:"urgent_slide_id"`
	UrgentStartsAt  time.Time `db:"urgent_starts_at"  json:"urgent_starts_at"`
	UrgentExpiresAt time.Time `db:"urgent_expires_at" json:"urgent_expires_at"`
}
