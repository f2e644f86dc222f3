package resolver

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// Store is the read side of the persistence layer the loader needs.
// db.Store satisfies it.
type Store interface {
	GetScreenByID(id int) (model.Screen, error)
	GetScreenGroupByID(id int) (model.ScreenGroup, error)
	ListScheduleRules(target model.Target) ([]model.ScheduleRule, error)
	GetPlaylistByID(id int) (model.Playlist, error)
	SlidesExist(ids []int) (map[int]bool, error)
}

// Source hands out per-screen snapshots. A screen that does not exist is
// reported as sql.ErrNoRows.
type Source interface {
	ScreenSnapshot(screenID int) (*Snapshot, error)
}

// GroupSource hands out snapshots scoped to a group alone.
type GroupSource interface {
	GroupSnapshot(groupID int) (*Snapshot, error)
}

// Loader builds snapshots straight from the store on every call.
type Loader struct {
	store Store
}

func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

func (l *Loader) ScreenSnapshot(screenID int) (*Snapshot, error) {
	screen, err := l.store.GetScreenByID(screenID)
	if err != nil {
		return nil, err
	}

	var group *model.ScreenGroup
	if screen.GroupID != nil {
		g, err := l.store.GetScreenGroupByID(*screen.GroupID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			log.Warn().Int("screen_id", screenID).Int("group_id", *screen.GroupID).
				Msg("screen references missing group")
		case err != nil:
			return nil, fmt.Errorf("load group %d: %w", *screen.GroupID, err)
		default:
			group = &g
		}
	}

	return l.build(&screen, group)
}

func (l *Loader) GroupSnapshot(groupID int) (*Snapshot, error) {
	group, err := l.store.GetScreenGroupByID(groupID)
	if err != nil {
		return nil, err
	}
	return l.build(nil, &group)
}

func (l *Loader) build(screen *model.Screen, group *model.ScreenGroup) (*Snapshot, error) {
	var rules []model.ScheduleRule
	wanted := map[int]struct{}{}

	collect := func(t model.Target, defaultPlaylist *int) error {
		rs, err := l.store.ListScheduleRules(t)
		if err != nil {
			return fmt.Errorf("list rules for %s: %w", t, err)
		}
		for _, r := range rs {
			wanted[r.PlaylistID] = struct{}{}
		}
		rules = append(rules, rs...)
		if defaultPlaylist != nil {
			wanted[*defaultPlaylist] = struct{}{}
		}
		return nil
	}
	if screen != nil {
		if err := collect(screen.Target(), screen.DefaultPlaylistID); err != nil {
			return nil, err
		}
	}
	if group != nil {
		if err := collect(group.Target(), group.DefaultPlaylistID); err != nil {
			return nil, err
		}
	}

	playlists := make(map[int]model.Playlist, len(wanted))
	for id := range wanted {
		p, err := l.store.GetPlaylistByID(id)
		if errors.Is(err, sql.ErrNoRows) {
			// dangling; logged when a resolution actually reaches it
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load playlist %d: %w", id, err)
		}
		playlists[id] = p
	}

	slides, err := l.store.SlidesExist(referencedSlides(screen, group, playlists))
	if err != nil {
		return nil, fmt.Errorf("check slides: %w", err)
	}

	return NewSnapshot(screen, group, rules, playlists, slides), nil
}
