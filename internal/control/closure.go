package control

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/bus"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// Closure expands targets to every target whose resolution may change: a
// screen is itself, a group is the group plus its members as of now.
// Membership is read outside the mutation's write, so a screen that leaves
// the group in between misses the event and converges on its next poll.
func (s *Service) Closure(targets ...model.Target) ([]model.Target, error) {
	seen := map[model.Target]struct{}{}
	out := make([]model.Target, 0, len(targets))
	add := func(t model.Target) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range targets {
		switch t.Type {
		case model.TargetScreen:
			add(t)
		case model.TargetGroup:
			add(t)
			members, err := s.store.ListScreensInGroup(t.ID)
			if err != nil {
				return out, fmt.Errorf("members of %s: %w", t, err)
			}
			for _, m := range members {
				add(m.Target())
			}
		default:
			return out, fmt.Errorf("%w: %q", ErrInvalidTarget, t.Type)
		}
	}
	return out, nil
}

// PlaylistClosure is the closure of every target that can play the
// playlist through a rule or a default.
func (s *Service) PlaylistClosure(playlistID int) ([]model.Target, error) {
	users, err := s.store.ListTargetsUsingPlaylist(playlistID)
	if err != nil {
		return nil, fmt.Errorf("targets using playlist %d: %w", playlistID, err)
	}
	return s.Closure(users...)
}

// notify publishes one deduplicated batch. Failures are logged and
// swallowed; the write already happened and players poll as a backstop.
func (s *Service) notify(ctx context.Context, targets []model.Target) {
	if len(targets) == 0 {
		return
	}
	events := make([]bus.Event, 0, len(targets))
	for _, t := range targets {
		events = append(events, bus.EventFor(t))
	}
	events = bus.Dedupe(events)
	if err := s.bus.Publish(ctx, events...); err != nil {
		log.Warn().Err(err).Int("events", len(events)).Msg("invalidation publish failed")
		return
	}
	log.Debug().Int("events", len(events)).Msg("published invalidations")
}

// notifyTargets computes the closure of targets and publishes it. A closure
// error still publishes whatever was collected.
func (s *Service) notifyTargets(ctx context.Context, targets ...model.Target) {
	closure, err := s.Closure(targets...)
	if err != nil {
		log.Warn().Err(err).Msg("partial invalidation closure")
	}
	s.notify(ctx, closure)
}

func (s *Service) notifyPlaylist(ctx context.Context, playlistID int) {
	closure, err := s.PlaylistClosure(playlistID)
	if err != nil {
		log.Warn().Err(err).Int("playlist_id", playlistID).Msg("partial invalidation closure")
	}
	s.notify(ctx, closure)
}
