package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

const screenColumns = `
	id, device_id, name, location, timezone, group_id, default_playlist_id,
	created_by, created_at, updated_at,
	active_slide_id, urgent_slide_id, urgent_starts_at, urgent_expires_at`

func (s *pgStore) GetScreenByID(id int) (model.Screen, error) {
	var screen model.Screen
	err := s.db.Get(&screen, `SELECT `+screenColumns+` FROM screens WHERE id = $1`, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Int("screen_id", id).Msg("failed to get screen by id")
	}
	return screen, err
}

func (s *pgStore) GetScreenByDeviceID(deviceID string) (model.Screen, error) {
	var screen model.Screen
	err := s.db.Get(&screen, `SELECT `+screenColumns+` FROM screens WHERE device_id = $1`, deviceID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Str("device_id", deviceID).Msg("failed to get screen by device id")
	}
	return screen, err
}

func (s *pgStore) ListScreens(ownerID int) ([]model.Screen, error) {
	screens := []model.Screen{}
	err := s.db.Select(&screens, `
		SELECT `+screenColumns+`
		  FROM screens
		 WHERE created_by = $1
		 ORDER BY id
		`, ownerID)
	if err != nil {
		log.Error().Err(err).Int("owner_id", ownerID).Msg("failed to list screens")
		return nil, err
	}
	return screens, nil
}

func (s *pgStore) CreateScreen(name string, location *string, timezone string, createdBy int) (model.Screen, error) {
	var screen model.Screen
	if timezone == "" {
		timezone = "UTC"
	}
	q := `
	INSERT INTO screens (name, location, timezone, created_by, created_at, updated_at)
	VALUES ($1, $2, $3, $4, now(), now())
	RETURNING ` + screenColumns
	if err := s.db.Get(&screen, q, name, location, timezone, createdBy); err != nil {
		log.Error().Err(err).Msg("failed to create screen")
		return model.Screen{}, err
	}
	return screen, nil
}

func (s *pgStore) UpdateScreen(id int, name, location, timezone *string) error {
	_, err := s.db.Exec(`
		UPDATE screens
		   SET name = COALESCE($2, name),
		       location = COALESCE($3, location),
		       timezone = COALESCE($4, timezone),
		       updated_at = now()
		 WHERE id = $1
		`, id, name, location, timezone)
	if err != nil {
		log.Error().Err(err).Int("screen_id", id).Msg("failed to update screen")
	}
	return err
}

func (s *pgStore) DeleteScreen(id int) error {
	return s.execOne(`DELETE FROM screens WHERE id = $1`, id)
}

// PairScreen binds a TV device id to the screen; nil unpairs it. A device
// already paired elsewhere violates the unique index.
func (s *pgStore) PairScreen(screenID int, deviceID *string) error {
	return s.execOne(`
		UPDATE screens
		   SET device_id = $2,
		       updated_at = now()
		 WHERE id = $1
		`, screenID, deviceID)
}

// SetScreenGroup moves a screen into a group, or out of any group when
// groupID is nil.
func (s *pgStore) SetScreenGroup(screenID int, groupID *int) error {
	return s.execOne(`
		UPDATE screens
		   SET group_id = $2,
		       updated_at = now()
		 WHERE id = $1
		`, screenID, groupID)
}

func (s *pgStore) SetScreenDefaultPlaylist(screenID int, playlistID *int) error {
	return s.execOne(`
		UPDATE screens
		   SET default_playlist_id = $2,
		       updated_at = now()
		 WHERE id = $1
		`, screenID, playlistID)
}

// ListScreensInGroup returns the group's current members. Membership is read
// as-is at call time and is not versioned.
func (s *pgStore) ListScreensInGroup(groupID int) ([]model.Screen, error) {
	screens := []model.Screen{}
	err := s.db.Select(&screens, `
		SELECT `+screenColumns+`
		  FROM screens
		 WHERE group_id = $1
		 ORDER BY id
		`, groupID)
	if err != nil {
		log.Error().Err(err).Int("group_id", groupID).Msg("failed to list screens in group")
		return nil, err
	}
	return screens, nil
}

// execOne runs a single-row write and maps "no row touched" to sql.ErrNoRows.
func (s *pgStore) execOne(query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		log.Error().Err(err).Msg("write failed")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
