// Package resolver decides what a screen shows at a given instant.
//
// The precedence is fixed: urgent, then manual, then scheduled, then
// default, then the "no content" placeholder. Within the urgent and manual
// tiers the screen's own slot beats its group's. Scheduled rules are
// evaluated in the screen's local wall clock; urgent windows are absolute.
package resolver

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

type Engine struct {
	// DefaultLocation is used for screens without a valid timezone and for
	// group previews.
	DefaultLocation *time.Location
}

func NewEngine(defaultLocation *time.Location) *Engine {
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &Engine{DefaultLocation: defaultLocation}
}

// Outcome is a decision together with the next instant at which the same
// snapshot would decide differently without anything being written.
type Outcome struct {
	Decision model.PlaybackDecision
	// UrgentStartsAt is the earliest urgent window, screen or group, that
	// opens after now. Zero when none is pending.
	UrgentStartsAt time.Time
}

// Resolve returns the decision for screenID at now. It always returns a
// usable decision; err is only set when the snapshot could not be loaded
// for a reason other than the screen being unknown, in which case the
// decision is the placeholder and callers may prefer to keep what they have.
func (e *Engine) Resolve(src Source, screenID int, now time.Time) (model.PlaybackDecision, error) {
	out, err := e.Evaluate(src, screenID, now)
	return out.Decision, err
}

// Evaluate is Resolve plus the pending urgent start, for callers that keep
// their own timers.
func (e *Engine) Evaluate(src Source, screenID int, now time.Time) (Outcome, error) {
	snap, err := src.ScreenSnapshot(screenID)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug().Int("screen_id", screenID).Msg("resolve for unknown screen")
		return Outcome{Decision: model.NoContent()}, nil
	}
	if err != nil {
		log.Error().Err(err).Int("screen_id", screenID).Msg("failed to load snapshot")
		return Outcome{Decision: model.NoContent()}, err
	}
	return Outcome{Decision: e.Decide(snap, now), UrgentStartsAt: snap.nextUrgentStart(now)}, nil
}

// ResolveGroup evaluates a group's own signals, as an unassigned member
// screen in the default location would see them.
func (e *Engine) ResolveGroup(src GroupSource, groupID int, now time.Time) (model.PlaybackDecision, error) {
	snap, err := src.GroupSnapshot(groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NoContent(), nil
	}
	if err != nil {
		log.Error().Err(err).Int("group_id", groupID).Msg("failed to load group snapshot")
		return model.NoContent(), err
	}
	return e.Decide(snap, now), nil
}

// Decide is the pure part of resolution: same snapshot and instant, same
// decision.
func (e *Engine) Decide(snap *Snapshot, now time.Time) model.PlaybackDecision {
	if snap == nil || (snap.Screen == nil && snap.Group == nil) {
		return model.NoContent()
	}
	logger := log.With().Str("target", snap.subject().String()).Logger()
	layers := snap.layers()

	for _, l := range layers {
		if !l.overrides.UrgentActive(now) {
			continue
		}
		slideID := *l.overrides.UrgentSlideID
		if !snap.Slides[slideID] {
			logger.Warn().Str("scope", string(l.target.Type)).Int("slide_id", slideID).
				Msg("urgent override references missing slide")
			continue
		}
		expires := *l.overrides.UrgentExpiresAt
		return model.PlaybackDecision{
			Kind:      model.DecisionUrgent,
			SlideID:   slideID,
			Scope:     l.target.Type,
			ExpiresAt: &expires,
		}
	}

	for _, l := range layers {
		if l.overrides.ActiveSlideID == nil {
			continue
		}
		slideID := *l.overrides.ActiveSlideID
		if !snap.Slides[slideID] {
			logger.Warn().Str("scope", string(l.target.Type)).Int("slide_id", slideID).
				Msg("manual override references missing slide")
			continue
		}
		return model.PlaybackDecision{
			Kind:    model.DecisionManual,
			SlideID: slideID,
			Scope:   l.target.Type,
		}
	}

	local := now.In(snap.location(e.DefaultLocation))

	for _, rule := range snap.Rules {
		if !rule.Window().Contains(local) {
			continue
		}
		playlist, ok := snap.Playlists[rule.PlaylistID]
		if !ok {
			logger.Warn().Int("rule_id", rule.ID).Int("playlist_id", rule.PlaylistID).
				Msg("schedule rule references missing playlist")
			continue
		}
		item, ok := firstEligible(snap, playlist, local, logger)
		if !ok {
			continue
		}
		ruleID := rule.ID
		return itemDecision(model.DecisionScheduled, rule.TargetType, playlist.ID, item, &ruleID)
	}

	for _, l := range layers {
		if l.defaultPlaylist == nil {
			continue
		}
		playlist, ok := snap.Playlists[*l.defaultPlaylist]
		if !ok {
			logger.Warn().Str("scope", string(l.target.Type)).Int("playlist_id", *l.defaultPlaylist).
				Msg("default playlist is missing")
			continue
		}
		item, ok := firstEligible(snap, playlist, local, logger)
		if !ok {
			continue
		}
		return itemDecision(model.DecisionDefault, l.target.Type, playlist.ID, item, nil)
	}

	return model.NoContent()
}

// firstEligible picks the first item, by position, whose predicate holds
// at local and whose slide still exists.
func firstEligible(snap *Snapshot, p model.Playlist, local time.Time, logger zerolog.Logger) (model.PlaylistItem, bool) {
	for _, item := range p.Items {
		if !item.Predicate.Holds(local) {
			continue
		}
		if !snap.Slides[item.SlideID] {
			logger.Warn().Int("playlist_id", p.ID).Int("item_id", item.ID).Int("slide_id", item.SlideID).
				Msg("playlist item references missing slide")
			continue
		}
		return item, true
	}
	return model.PlaylistItem{}, false
}

func itemDecision(kind model.DecisionKind, scope model.TargetType, playlistID int, item model.PlaylistItem, ruleID *int) model.PlaybackDecision {
	itemID := item.ID
	d := model.PlaybackDecision{
		Kind:             kind,
		SlideID:          item.SlideID,
		Scope:            scope,
		SourcePlaylistID: &playlistID,
		SourceItemID:     &itemID,
		SourceRuleID:     ruleID,
	}
	if item.Duration > 0 {
		duration := item.Duration
		d.DurationSeconds = &duration
	}
	return d
}
