// Package control is the only write path for data that feeds resolution.
// Every mutation validates, writes through the store, then publishes the
// affected-target closure on the bus in one batch.
package control

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/bus"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

var (
	ErrInvalidUrgent   = errors.New("invalid urgent override")
	ErrInvalidTarget   = errors.New("invalid target")
	ErrUnknownSlide    = errors.New("unknown slide")
	ErrUnknownPlaylist = errors.New("unknown playlist")
	ErrInvalidItem     = errors.New("invalid playlist item")
)

// IsValidation reports whether err was caused by bad input rather than by
// the store.
func IsValidation(err error) bool {
	return errors.Is(err, model.ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidUrgent) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, ErrUnknownSlide) ||
		errors.Is(err, ErrUnknownPlaylist) ||
		errors.Is(err, ErrInvalidItem)
}

// Store is the slice of db.Store the control plane writes through.
type Store interface {
	GetScreenByID(id int) (model.Screen, error)
	GetScreenGroupByID(id int) (model.ScreenGroup, error)
	ListScreensInGroup(groupID int) ([]model.Screen, error)
	UpdateScreen(id int, name, location, timezone *string) error
	DeleteScreen(id int) error
	SetScreenGroup(screenID int, groupID *int) error
	SetScreenDefaultPlaylist(screenID int, playlistID *int) error
	DeleteScreenGroup(id int) error
	SetGroupDefaultPlaylist(groupID int, playlistID *int) error

	SetManualOverride(target model.Target, slideID *int) error
	SetUrgentOverride(target model.Target, slideID *int, startsAt, expiresAt *time.Time) error

	SlidesExist(ids []int) (map[int]bool, error)
	DeleteSlide(id int) error
	ListTargetsUsingSlide(slideID int) ([]model.Target, error)

	GetPlaylistByID(id int) (model.Playlist, error)
	DeletePlaylist(id int) error
	AddPlaylistItem(playlistID, slideID, position, duration int, predicate model.Predicate) (model.PlaylistItem, error)
	GetPlaylistItem(itemID int) (model.PlaylistItem, error)
	UpdatePlaylistItem(itemID int, position, duration *int, predicate *model.Predicate) error
	RemovePlaylistItem(itemID int) error
	ReorderPlaylistItems(playlistID int, itemIDs []int) error

	CreateScheduleRule(rule model.ScheduleRule) (model.ScheduleRule, error)
	GetScheduleRule(id int) (model.ScheduleRule, error)
	UpdateScheduleRule(rule model.ScheduleRule) (model.ScheduleRule, error)
	DeleteScheduleRule(id int) error
	ListTargetsUsingPlaylist(playlistID int) ([]model.Target, error)
}

type Service struct {
	store Store
	bus   bus.Bus
	now   func() time.Time
}

func NewService(store Store, b bus.Bus) *Service {
	return &Service{store: store, bus: b, now: time.Now}
}

// targetName checks the target exists and returns its display name.
func (s *Service) targetName(t model.Target) (string, error) {
	switch t.Type {
	case model.TargetScreen:
		sc, err := s.store.GetScreenByID(t.ID)
		return sc.Name, err
	case model.TargetGroup:
		g, err := s.store.GetScreenGroupByID(t.ID)
		return g.Name, err
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTarget, t.Type)
}

func (s *Service) requireSlide(id int) error {
	found, err := s.store.SlidesExist([]int{id})
	if err != nil {
		return err
	}
	if !found[id] {
		return fmt.Errorf("%w: %d", ErrUnknownSlide, id)
	}
	return nil
}

func (s *Service) requirePlaylist(id int) error {
	_, err := s.store.GetPlaylistByID(id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrUnknownPlaylist, id)
	}
	return err
}

// @ OVERRIDES

func (s *Service) AssignManual(ctx context.Context, target model.Target, slideID int) error {
	if _, err := s.targetName(target); err != nil {
		return err
	}
	if err := s.requireSlide(slideID); err != nil {
		return err
	}
	if err := s.store.SetManualOverride(target, &slideID); err != nil {
		return err
	}
	log.Info().Str("target", target.String()).Int("slide_id", slideID).Msg("manual override set")
	s.notifyTargets(ctx, target)
	return nil
}

func (s *Service) ClearManual(ctx context.Context, target model.Target) error {
	if !target.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target.Type)
	}
	if err := s.store.SetManualOverride(target, nil); err != nil {
		return err
	}
	s.notifyTargets(ctx, target)
	return nil
}

// CreateUrgent arms the urgent slot for duration starting at startsAt, or
// now when startsAt is nil. It replaces whatever the slot held.
func (s *Service) CreateUrgent(ctx context.Context, target model.Target, slideID int, startsAt *time.Time, duration time.Duration) (model.UrgentTarget, error) {
	if duration <= 0 {
		return model.UrgentTarget{}, fmt.Errorf("%w: duration must be positive", ErrInvalidUrgent)
	}
	name, err := s.targetName(target)
	if err != nil {
		return model.UrgentTarget{}, err
	}
	if err := s.requireSlide(slideID); err != nil {
		return model.UrgentTarget{}, err
	}

	start := s.now().UTC()
	if startsAt != nil {
		start = startsAt.UTC()
	}
	expires := start.Add(duration)
	if err := s.store.SetUrgentOverride(target, &slideID, &start, &expires); err != nil {
		return model.UrgentTarget{}, err
	}
	log.Info().Str("target", target.String()).Int("slide_id", slideID).
		Time("starts_at", start).Time("expires_at", expires).Msg("urgent override armed")

	s.notifyTargets(ctx, target)
	return model.UrgentTarget{
		Target:          target,
		Name:            name,
		UrgentSlideID:   slideID,
		UrgentStartsAt:  start,
		UrgentExpiresAt: expires,
	}, nil
}

func (s *Service) ClearUrgent(ctx context.Context, target model.Target) error {
	if !target.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target.Type)
	}
	if err := s.store.SetUrgentOverride(target, nil, nil, nil); err != nil {
		return err
	}
	s.notifyTargets(ctx, target)
	return nil
}

// @ SCHEDULE RULES

// CreateRule validates and stores rule. With overnight set, a window whose
// end is not after its start is split at midnight into two rules, the
// second on the following days.
func (s *Service) CreateRule(ctx context.Context, rule model.ScheduleRule, overnight bool) ([]model.ScheduleRule, error) {
	target := rule.Target()
	if _, err := s.targetName(target); err != nil {
		return nil, err
	}

	windows := []model.Window{rule.Window()}
	if overnight {
		windows = model.SplitOvernight(rule.Days, rule.StartTime, rule.EndTime)
	}
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}
	if err := s.requirePlaylist(rule.PlaylistID); err != nil {
		return nil, err
	}

	created := make([]model.ScheduleRule, 0, len(windows))
	var createErr error
	for _, w := range windows {
		r := rule
		r.StartTime, r.EndTime, r.Days = w.Start, w.End, w.Days
		out, err := s.store.CreateScheduleRule(r)
		if err != nil {
			createErr = err
			break
		}
		created = append(created, out)
	}
	if len(created) > 0 {
		s.notifyTargets(ctx, target)
	}
	return created, createErr
}

// UpdateRule rewrites window, playlist and priority; the target of an
// existing rule never changes.
func (s *Service) UpdateRule(ctx context.Context, rule model.ScheduleRule) (model.ScheduleRule, error) {
	existing, err := s.store.GetScheduleRule(rule.ID)
	if err != nil {
		return model.ScheduleRule{}, err
	}
	if err := rule.Window().Validate(); err != nil {
		return model.ScheduleRule{}, err
	}
	if rule.PlaylistID != existing.PlaylistID {
		if err := s.requirePlaylist(rule.PlaylistID); err != nil {
			return model.ScheduleRule{}, err
		}
	}
	rule.TargetType, rule.TargetID = existing.TargetType, existing.TargetID

	out, err := s.store.UpdateScheduleRule(rule)
	if err != nil {
		return model.ScheduleRule{}, err
	}
	s.notifyTargets(ctx, existing.Target())
	return out, nil
}

func (s *Service) DeleteRule(ctx context.Context, ruleID int) error {
	existing, err := s.store.GetScheduleRule(ruleID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteScheduleRule(ruleID); err != nil {
		return err
	}
	s.notifyTargets(ctx, existing.Target())
	return nil
}

// @ PLAYLISTS

func validateItem(duration int, predicate model.Predicate) error {
	if duration < 1 {
		return fmt.Errorf("%w: duration must be at least one second", ErrInvalidItem)
	}
	return predicate.Validate()
}

func (s *Service) AddPlaylistItem(ctx context.Context, playlistID, slideID, position, duration int, predicate model.Predicate) (model.PlaylistItem, error) {
	if err := validateItem(duration, predicate); err != nil {
		return model.PlaylistItem{}, err
	}
	if position < 0 {
		return model.PlaylistItem{}, fmt.Errorf("%w: position must not be negative", ErrInvalidItem)
	}
	if _, err := s.store.GetPlaylistByID(playlistID); err != nil {
		return model.PlaylistItem{}, err
	}
	if err := s.requireSlide(slideID); err != nil {
		return model.PlaylistItem{}, err
	}
	item, err := s.store.AddPlaylistItem(playlistID, slideID, position, duration, predicate)
	if err != nil {
		return model.PlaylistItem{}, err
	}
	s.notifyPlaylist(ctx, playlistID)
	return item, nil
}

func (s *Service) UpdatePlaylistItem(ctx context.Context, itemID int, position, duration *int, predicate *model.Predicate) error {
	item, err := s.store.GetPlaylistItem(itemID)
	if err != nil {
		return err
	}
	if duration != nil && *duration < 1 {
		return fmt.Errorf("%w: duration must be at least one second", ErrInvalidItem)
	}
	if position != nil && *position < 1 {
		return fmt.Errorf("%w: position must be at least 1", ErrInvalidItem)
	}
	if predicate != nil {
		if err := predicate.Validate(); err != nil {
			return err
		}
	}
	if err := s.store.UpdatePlaylistItem(itemID, position, duration, predicate); err != nil {
		return err
	}
	s.notifyPlaylist(ctx, item.PlaylistID)
	return nil
}

func (s *Service) RemovePlaylistItem(ctx context.Context, itemID int) error {
	item, err := s.store.GetPlaylistItem(itemID)
	if err != nil {
		return err
	}
	if err := s.store.RemovePlaylistItem(itemID); err != nil {
		return err
	}
	s.notifyPlaylist(ctx, item.PlaylistID)
	return nil
}

func (s *Service) ReorderPlaylistItems(ctx context.Context, playlistID int, itemIDs []int) error {
	seen := make(map[int]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: item %d listed twice", ErrInvalidItem, id)
		}
		seen[id] = struct{}{}
	}
	if err := s.store.ReorderPlaylistItems(playlistID, itemIDs); err != nil {
		return err
	}
	s.notifyPlaylist(ctx, playlistID)
	return nil
}

// DeletePlaylist computes who is affected before the row goes away; rules
// and defaults that pointed at it become dangling and are skipped.
func (s *Service) DeletePlaylist(ctx context.Context, playlistID int) error {
	closure, closureErr := s.PlaylistClosure(playlistID)
	if err := s.store.DeletePlaylist(playlistID); err != nil {
		return err
	}
	if closureErr != nil {
		log.Warn().Err(closureErr).Int("playlist_id", playlistID).Msg("partial invalidation closure")
	}
	s.notify(ctx, closure)
	return nil
}

// @ TARGETS

// MoveScreen changes a screen's group, or removes it from any group when
// groupID is nil. Only the moved screen changes resolution.
func (s *Service) MoveScreen(ctx context.Context, screenID int, groupID *int) error {
	if groupID != nil {
		if _, err := s.store.GetScreenGroupByID(*groupID); err != nil {
			return err
		}
	}
	if err := s.store.SetScreenGroup(screenID, groupID); err != nil {
		return err
	}
	s.notifyTargets(ctx, model.ScreenTarget(screenID))
	return nil
}

func (s *Service) SetScreenDefaultPlaylist(ctx context.Context, screenID int, playlistID *int) error {
	if playlistID != nil {
		if err := s.requirePlaylist(*playlistID); err != nil {
			return err
		}
	}
	if err := s.store.SetScreenDefaultPlaylist(screenID, playlistID); err != nil {
		return err
	}
	s.notifyTargets(ctx, model.ScreenTarget(screenID))
	return nil
}

func (s *Service) SetGroupDefaultPlaylist(ctx context.Context, groupID int, playlistID *int) error {
	if playlistID != nil {
		if err := s.requirePlaylist(*playlistID); err != nil {
			return err
		}
	}
	if err := s.store.SetGroupDefaultPlaylist(groupID, playlistID); err != nil {
		return err
	}
	s.notifyTargets(ctx, model.GroupTarget(groupID))
	return nil
}

// UpdateScreen edits name, location and timezone. A timezone change moves
// every schedule window, so the screen is invalidated.
func (s *Service) UpdateScreen(ctx context.Context, screenID int, name, location, timezone *string) error {
	if timezone != nil {
		if _, err := time.LoadLocation(*timezone); err != nil || *timezone == "" {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidTarget, *timezone)
		}
	}
	if err := s.store.UpdateScreen(screenID, name, location, timezone); err != nil {
		return err
	}
	s.notifyTargets(ctx, model.ScreenTarget(screenID))
	return nil
}

func (s *Service) DeleteScreen(ctx context.Context, screenID int) error {
	if err := s.store.DeleteScreen(screenID); err != nil {
		return err
	}
	s.notifyTargets(ctx, model.ScreenTarget(screenID))
	return nil
}

// DeleteGroup notifies the group and its members as they were before the
// delete detached them.
func (s *Service) DeleteGroup(ctx context.Context, groupID int) error {
	closure, closureErr := s.Closure(model.GroupTarget(groupID))
	if err := s.store.DeleteScreenGroup(groupID); err != nil {
		return err
	}
	if closureErr != nil {
		log.Warn().Err(closureErr).Int("group_id", groupID).Msg("partial invalidation closure")
	}
	s.notify(ctx, closure)
	return nil
}

// DeleteSlide removes slide content. Everything that could be showing it is
// notified; the references left behind are skipped at resolution.
func (s *Service) DeleteSlide(ctx context.Context, slideID int) error {
	users, usersErr := s.store.ListTargetsUsingSlide(slideID)
	if err := s.store.DeleteSlide(slideID); err != nil {
		return err
	}
	if usersErr != nil {
		log.Warn().Err(usersErr).Int("slide_id", slideID).Msg("could not list targets using slide")
		return nil
	}
	s.notifyTargets(ctx, users...)
	return nil
}
