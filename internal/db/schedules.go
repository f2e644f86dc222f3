package db

import (
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

const ruleColumns = `
	id, target_type, target_id, playlist_id, start_time, end_time,
	days_of_week, priority, created_by, created_at, updated_at`

func (s *pgStore) CreateScheduleRule(rule model.ScheduleRule) (model.ScheduleRule, error) {
	var out model.ScheduleRule
	err := s.db.Get(&out, `
	INSERT INTO schedule_rules
	  (target_type, target_id, playlist_id, start_time, end_time, days_of_week, priority, created_by, created_at, updated_at)
	VALUES
	  ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	RETURNING `+ruleColumns+`;`,
		rule.TargetType, rule.TargetID, rule.PlaylistID,
		rule.StartTime, rule.EndTime, rule.Days, rule.Priority, rule.CreatedBy)
	if err != nil {
		log.Error().Err(err).Str("target", rule.Target().String()).Msg("CreateScheduleRule failed")
		return model.ScheduleRule{}, err
	}
	return out, nil
}

func (s *pgStore) GetScheduleRule(id int) (model.ScheduleRule, error) {
	var r model.ScheduleRule
	err := s.db.Get(&r, `SELECT `+ruleColumns+` FROM schedule_rules WHERE id = $1;`, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Int("rule_id", id).Msg("GetScheduleRule failed")
	}
	return r, err
}

// UpdateScheduleRule rewrites the window, playlist and priority of a rule.
// The target is fixed at creation.
func (s *pgStore) UpdateScheduleRule(rule model.ScheduleRule) (model.ScheduleRule, error) {
	var out model.ScheduleRule
	err := s.db.Get(&out, `
	UPDATE schedule_rules
	   SET playlist_id  = $2,
	       start_time   = $3,
	       end_time     = $4,
	       days_of_week = $5,
	       priority     = $6,
	       updated_at   = now()
	 WHERE id = $1
	RETURNING `+ruleColumns+`;`,
		rule.ID, rule.PlaylistID, rule.StartTime, rule.EndTime, rule.Days, rule.Priority)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Int("rule_id", rule.ID).Msg("UpdateScheduleRule failed")
	}
	return out, err
}

func (s *pgStore) DeleteScheduleRule(id int) error {
	err := s.execOne(`DELETE FROM schedule_rules WHERE id = $1;`, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Int("rule_id", id).Msg("DeleteScheduleRule failed")
	}
	return err
}

// ListScheduleRules returns every rule bound to target, lowest id first.
func (s *pgStore) ListScheduleRules(target model.Target) ([]model.ScheduleRule, error) {
	out := []model.ScheduleRule{}
	err := s.db.Select(&out, `
	SELECT `+ruleColumns+`
	  FROM schedule_rules
	 WHERE target_type = $1 AND target_id = $2
	 ORDER BY id;`, target.Type, target.ID)
	if err != nil {
		log.Error().Err(err).Str("target", target.String()).Msg("ListScheduleRules failed")
		return nil, err
	}
	return out, nil
}

// ListTargetsUsingPlaylist returns every target that can end up playing the
// playlist, either through a rule or as its default.
func (s *pgStore) ListTargetsUsingPlaylist(playlistID int) ([]model.Target, error) {
	out := []model.Target{}
	err := s.db.Select(&out, `
	SELECT DISTINCT target_type, target_id FROM (
	    SELECT target_type, target_id FROM schedule_rules WHERE playlist_id = $1
	    UNION
	    SELECT 'screen', id FROM screens WHERE default_playlist_id = $1
	    UNION
	    SELECT 'group', id FROM screen_groups WHERE default_playlist_id = $1
	) t
	ORDER BY target_type, target_id;`, playlistID)
	if err != nil {
		log.Error().Err(err).Int("playlist_id", playlistID).Msg("ListTargetsUsingPlaylist failed")
		return nil, err
	}
	return out, nil
}
