package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

const itemColumns = `id, playlist_id, slide_id, position, duration, schedule_predicate, created_at`

// @ PLAYLIST
func (s *pgStore) CreatePlaylist(name string, description *string, createdBy int) (model.Playlist, error) {
	var p model.Playlist
	const q = `
    INSERT INTO playlists (name, description, created_by, created_at, updated_at)
    VALUES ($1, $2, $3, now(), now())
    RETURNING id, name, description, created_by, created_at, updated_at;
    `
	if err := s.db.Get(&p, q, name, description, createdBy); err != nil {
		log.Error().Err(err).Msg("[db] CreatePlaylist: failed to insert playlist")
		return model.Playlist{}, err
	}
	p.Items = []model.PlaylistItem{}
	return p, nil
}

// GetPlaylistByID loads the playlist row and its items ordered by position.
func (s *pgStore) GetPlaylistByID(id int) (model.Playlist, error) {
	var p model.Playlist
	err := s.db.Get(&p, `
		SELECT id, name, description, created_by, created_at, updated_at
		  FROM playlists
		 WHERE id = $1;`, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Int("playlist_id", id).Msg("failed to get playlist by ID")
		}
		return model.Playlist{}, err
	}

	items, err := s.ListPlaylistItems(id)
	if err != nil {
		return model.Playlist{}, err
	}
	p.Items = items
	return p, nil
}

func (s *pgStore) ListPlaylists(ownerID int) ([]model.Playlist, error) {
	out := []model.Playlist{}
	const q = `
		SELECT id, name, description, created_by, created_at, updated_at
		  FROM playlists
		 WHERE created_by = $1
		 ORDER BY id;`
	if err := s.db.Select(&out, q, ownerID); err != nil {
		log.Error().Err(err).Msg("[db] ListPlaylists: failed to select playlists")
		return nil, err
	}

	for i := range out {
		items, err := s.ListPlaylistItems(out[i].ID)
		if err != nil {
			log.Error().Err(err).Msgf("[db] ListPlaylists: failed to load items for playlist %d", out[i].ID)
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// DeletePlaylist removes the playlist and its items. Schedule rules and
// default assignments that point at it are left dangling on purpose; the
// resolver skips them.
func (s *pgStore) DeletePlaylist(id int) error {
	return s.execOne(`DELETE FROM playlists WHERE id = $1;`, id)
}

// shiftItems opens position pos for an insert or a move by pushing every
// other item at or after it down one slot. The unique (playlist_id,
// position) constraint is deferrable, so it is checked once per statement.
const shiftItems = `
	UPDATE playlist_items
	   SET position = position + 1
	 WHERE playlist_id = $1
	   AND position >= $2
	   AND id <> $3;`

// AddPlaylistItem inserts an item. A position of 0 appends after the
// current last item; an explicit position is opened up first so later items
// keep their relative order.
func (s *pgStore) AddPlaylistItem(playlistID, slideID, position, duration int, predicate model.Predicate) (model.PlaylistItem, error) {
	var it model.PlaylistItem
	query := `
	INSERT INTO playlist_items
	(playlist_id, slide_id, position, duration, schedule_predicate, created_at)
	VALUES
	($1, $2,
	 COALESCE(NULLIF($3, 0), (SELECT COALESCE(MAX(position), 0) + 1 FROM playlist_items WHERE playlist_id = $1)),
	 $4, $5, now())
	RETURNING ` + itemColumns + `;`

	err := s.inTx(func(tx *sqlx.Tx) error {
		if position > 0 {
			if _, err := tx.Exec(shiftItems, playlistID, position, 0); err != nil {
				return err
			}
		}
		return tx.Get(&it, query, playlistID, slideID, position, duration, predicate)
	})
	if err != nil {
		log.Error().Err(err).Int("playlist_id", playlistID).Msg("failed to add item to playlist")
		return model.PlaylistItem{}, err
	}
	return it, nil
}

func (s *pgStore) GetPlaylistItem(itemID int) (model.PlaylistItem, error) {
	var it model.PlaylistItem
	err := s.db.Get(&it, `SELECT `+itemColumns+` FROM playlist_items WHERE id = $1;`, itemID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Int("item_id", itemID).Msg("failed to get playlist item")
	}
	return it, err
}

// UpdatePlaylistItem updates position, duration and predicate of an item.
// A nil argument leaves the column untouched. Moving an item parks it at
// position 0 and opens the target slot, the same way an insert does.
func (s *pgStore) UpdatePlaylistItem(itemID int, position, duration *int, predicate *model.Predicate) error {
	setPredicate := predicate != nil
	var pred model.Predicate
	if predicate != nil {
		pred = *predicate
	}
	err := s.inTx(func(tx *sqlx.Tx) error {
		if position != nil {
			var playlistID int
			err := tx.Get(&playlistID, `
				UPDATE playlist_items
				   SET position = 0
				 WHERE id = $1
				RETURNING playlist_id;`, itemID)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(shiftItems, playlistID, *position, itemID); err != nil {
				return err
			}
		}
		res, err := tx.Exec(`
			UPDATE playlist_items
			SET
			position = COALESCE($2, position),
			duration = COALESCE($3, duration),
			schedule_predicate = CASE WHEN $4 THEN $5::jsonb ELSE schedule_predicate END
			WHERE id = $1;`,
			itemID, position, duration, setPredicate, pred,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Int("item_id", itemID).Msg("failed to update playlist item")
	}
	return err
}

func (s *pgStore) RemovePlaylistItem(itemID int) error {
	return s.execOne(`DELETE FROM playlist_items WHERE id = $1;`, itemID)
}

func (s *pgStore) ListPlaylistItems(playlistID int) ([]model.PlaylistItem, error) {
	list := []model.PlaylistItem{}
	query := `
    SELECT ` + itemColumns + `
    FROM playlist_items
    WHERE playlist_id = $1
    ORDER BY position, id;`

	if err := s.db.Select(&list, query, playlistID); err != nil {
		log.Error().Err(err).Int("playlist_id", playlistID).Msg("failed to list playlist items")
		return nil, err
	}
	return list, nil
}

// ReorderPlaylistItems rewrites positions to 1..n in the order given. Items
// are first shifted past the new range so the unique (playlist_id, position)
// constraint holds throughout the transaction.
func (s *pgStore) ReorderPlaylistItems(playlistID int, itemIDs []int) error {
	return s.inTx(func(tx *sqlx.Tx) error {
		count := len(itemIDs)
		if _, err := tx.Exec(`
	        UPDATE playlist_items
	           SET position = position + $1
	         WHERE playlist_id = $2;
	    `, count, playlistID); err != nil {
			return err
		}

		for idx, itemID := range itemIDs {
			res, err := tx.Exec(`
	            UPDATE playlist_items
	               SET position = $1
	             WHERE id = $2
	               AND playlist_id = $3;
	        `, idx+1, itemID, playlistID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("item %d is not in playlist %d: %w", itemID, playlistID, sql.ErrNoRows)
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction, committing on success and rolling back on
// any error.
func (s *pgStore) inTx(fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("rollback failed")
			}
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}
