package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

const groupColumns = `
	id, name, description, default_playlist_id, created_by, created_at, updated_at,
	active_slide_id, urgent_slide_id, urgent_starts_at, urgent_expires_at`

func (s *pgStore) CreateScreenGroup(ownerID int, name string, description *string) (model.ScreenGroup, error) {
	var g model.ScreenGroup
	if name == "" {
		return g, fmt.Errorf("group name is required")
	}
	err := s.db.Get(&g, `
		INSERT INTO screen_groups (name, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING `+groupColumns, name, description, ownerID)
	if err != nil {
		log.Error().Err(err).Int("owner_id", ownerID).Msg("failed to create screen group")
	}
	return g, err
}

func (s *pgStore) GetScreenGroupByID(id int) (model.ScreenGroup, error) {
	var g model.ScreenGroup
	err := s.db.Get(&g, `SELECT `+groupColumns+` FROM screen_groups WHERE id = $1`, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Int("group_id", id).Msg("failed to get screen group")
	}
	return g, err
}

func (s *pgStore) ListScreenGroups(ownerID int) ([]model.ScreenGroup, error) {
	groups := []model.ScreenGroup{}
	err := s.db.Select(&groups, `
		SELECT `+groupColumns+`
		  FROM screen_groups
		 WHERE created_by = $1
		 ORDER BY name ASC, id ASC
	`, ownerID)
	if err != nil {
		log.Error().Err(err).Int("owner_id", ownerID).Msg("failed to list screen groups")
		return nil, err
	}
	return groups, nil
}

// DeleteScreenGroup removes the group; member screens fall back to no group
// through ON DELETE SET NULL.
func (s *pgStore) DeleteScreenGroup(id int) error {
	return s.execOne(`DELETE FROM screen_groups WHERE id = $1`, id)
}

func (s *pgStore) SetGroupDefaultPlaylist(groupID int, playlistID *int) error {
	return s.execOne(`
		UPDATE screen_groups
		   SET default_playlist_id = $2,
		       updated_at = now()
		 WHERE id = $1
	`, groupID, playlistID)
}
