package db

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

func (s *pgStore) CreateSlide(name, typ string, body json.RawMessage, createdBy int) (model.Slide, error) {
	var sl model.Slide
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}
	err := s.db.Get(&sl, `
	INSERT INTO slides (name, type, body, created_by, created_at)
	VALUES ($1, $2, $3, $4, now())
	RETURNING id, name, type, body, created_by, created_at;`,
		name, typ, []byte(body), createdBy)
	if err != nil {
		log.Error().Err(err).Msg("failed to create slide")
		return model.Slide{}, err
	}
	return sl, nil
}

func (s *pgStore) GetSlideByID(id int) (model.Slide, error) {
	var sl model.Slide
	err := s.db.Get(&sl, `
	SELECT id, name, type, body, created_by, created_at
	FROM slides
	WHERE id = $1;`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Slide{}, sql.ErrNoRows
	}
	if err != nil {
		log.Error().Err(err).Int("slide_id", id).Msg("failed to get slide by id")
	}
	return sl, err
}

func (s *pgStore) ListSlides(ownerID int) ([]model.Slide, error) {
	all := []model.Slide{}
	if err := s.db.Select(&all, `
	SELECT id, name, type, body, created_by, created_at
	FROM slides
	WHERE created_by = $1
	ORDER BY id;`, ownerID); err != nil {
		log.Error().Err(err).Msg("failed to list slides")
		return nil, err
	}
	return all, nil
}

func (s *pgStore) DeleteSlide(id int) error {
	return s.execOne(`DELETE FROM slides WHERE id = $1;`, id)
}

// SlidesExist reports, for every requested id, whether the slide row is
// still present.
func (s *pgStore) SlidesExist(ids []int) (map[int]bool, error) {
	out := make(map[int]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		out[id] = false
	}
	var found []int64
	if err := s.db.Select(&found, `SELECT id FROM slides WHERE id = ANY($1);`, pq.Array(ids)); err != nil {
		log.Error().Err(err).Msg("failed to check slide existence")
		return nil, err
	}
	for _, id := range found {
		out[int(id)] = true
	}
	return out, nil
}

// ListTargetsUsingSlide returns every target that can end up showing the
// slide: through either override slot, or through a playlist bound by rule
// or default.
func (s *pgStore) ListTargetsUsingSlide(slideID int) ([]model.Target, error) {
	out := []model.Target{}
	err := s.db.Select(&out, `
	SELECT DISTINCT target_type, target_id FROM (
	    SELECT 'screen' AS target_type, id AS target_id FROM screens
	     WHERE active_slide_id = $1 OR urgent_slide_id = $1
	    UNION
	    SELECT 'group', id FROM screen_groups
	     WHERE active_slide_id = $1 OR urgent_slide_id = $1
	    UNION
	    SELECT r.target_type, r.target_id FROM schedule_rules r
	      JOIN playlist_items i ON i.playlist_id = r.playlist_id
	     WHERE i.slide_id = $1
	    UNION
	    SELECT 'screen', sc.id FROM screens sc
	      JOIN playlist_items i ON i.playlist_id = sc.default_playlist_id
	     WHERE i.slide_id = $1
	    UNION
	    SELECT 'group', g.id FROM screen_groups g
	      JOIN playlist_items i ON i.playlist_id = g.default_playlist_id
	     WHERE i.slide_id = $1
	) t
	ORDER BY target_type, target_id;`, slideID)
	if err != nil {
		log.Error().Err(err).Int("slide_id", slideID).Msg("failed to list targets using slide")
		return nil, err
	}
	return out, nil
}
