package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

func overrideTable(t model.TargetType) (string, error) {
	switch t {
	case model.TargetScreen:
		return "screens", nil
	case model.TargetGroup:
		return "screen_groups", nil
	}
	return "", fmt.Errorf("unknown target type %q", t)
}

// SetManualOverride sets or, with a nil slide, clears the sticky slot.
func (s *pgStore) SetManualOverride(target model.Target, slideID *int) error {
	table, err := overrideTable(target.Type)
	if err != nil {
		return err
	}
	if err := s.execOne(`
		UPDATE `+table+`
		   SET active_slide_id = $2,
		       updated_at = now()
		 WHERE id = $1
	`, target.ID, slideID); err != nil {
		log.Error().Err(err).Str("target", target.String()).Msg("failed to set manual override")
		return err
	}
	return nil
}

// SetUrgentOverride overwrites all three urgent columns at once; passing
// nils clears the slot.
func (s *pgStore) SetUrgentOverride(target model.Target, slideID *int, startsAt, expiresAt *time.Time) error {
	table, err := overrideTable(target.Type)
	if err != nil {
		return err
	}
	if err := s.execOne(`
		UPDATE `+table+`
		   SET urgent_slide_id   = $2,
		       urgent_starts_at  = $3,
		       urgent_expires_at = $4,
		       updated_at = now()
		 WHERE id = $1
	`, target.ID, slideID, startsAt, expiresAt); err != nil {
		log.Error().Err(err).Str("target", target.String()).Msg("failed to set urgent override")
		return err
	}
	return nil
}

// ListActiveUrgent lists targets whose urgent slot is live at now. Expired
// pointers stay in the table and are filtered here at read time.
func (s *pgStore) ListActiveUrgent(ownerID int, now time.Time) ([]model.UrgentTarget, error) {
	out := []model.UrgentTarget{}
	err := s.db.Select(&out, `
		SELECT 'screen' AS target_type, id AS target_id, name,
		       urgent_slide_id, urgent_starts_at, urgent_expires_at
		  FROM screens
		 WHERE created_by = $1
		   AND urgent_slide_id IS NOT NULL
		   AND urgent_starts_at <= $2 AND urgent_expires_at > $2
		UNION ALL
		SELECT 'group' AS target_type, id AS target_id, name,
		       urgent_slide_id, urgent_starts_at, urgent_expires_at
		  FROM screen_groups
		 WHERE created_by = $1
		   AND urgent_slide_id IS NOT NULL
		   AND urgent_starts_at <= $2 AND urgent_expires_at > $2
		 ORDER BY urgent_expires_at, target_type, target_id
	`, ownerID, now.UTC())
	if err != nil {
		log.Error().Err(err).Int("owner_id", ownerID).Msg("failed to list active urgent overrides")
		return nil, err
	}
	return out, nil
}
