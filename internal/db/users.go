package db

import (
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// fetches a user by ID. Returns nil, sql.ErrNoRows if not found.
func (s *pgStore) GetUserByID(id int) (*model.User, error) {
	var u model.User
	err := s.db.Get(&u, `
	SELECT id, email, name, created_at, updated_at
	FROM users
	WHERE id = $1;
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		log.Error().Err(err).Int("user_id", id).Msg("failed to get user by id")
		return nil, err
	}
	return &u, nil
}
