// Package player runs the per-screen playback loop: one goroutine owns the
// current decision and its dwell deadline and re-resolves on invalidation,
// dwell expiry, urgent start or expiry, or the fallback poll.
package player

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/bus"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/resolver"
)

const DefaultPollInterval = 30 * time.Second

// Source is a snapshot source whose entries can be dropped on invalidation.
// *resolver.Cache satisfies it.
type Source interface {
	resolver.Source
	Invalidate(screenID int)
}

type Config struct {
	ScreenID     int
	Engine       *resolver.Engine
	Source       Source
	Bus          bus.Bus
	PollInterval time.Duration
	// OnChange receives every new decision, starting with the first one.
	// It runs on the player goroutine.
	OnChange func(model.PlaybackDecision)
	Now      func() time.Time
}

type Player struct {
	cfg    Config
	wake   chan struct{}
	logger zerolog.Logger

	mu             sync.RWMutex
	current        model.PlaybackDecision
	dwellDeadline  time.Time
	urgentStartsAt time.Time
	started        bool
}

func New(cfg Config) *Player {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.OnChange == nil {
		cfg.OnChange = func(model.PlaybackDecision) {}
	}
	return &Player{
		cfg:    cfg,
		wake:   make(chan struct{}, 1),
		logger: log.With().Int("screen_id", cfg.ScreenID).Logger(),
	}
}

// Current returns the decision being played.
func (p *Player) Current() model.PlaybackDecision {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Notify asks the loop to re-resolve from fresh data. Calls coalesce; it
// never blocks, so it is safe as a bus handler.
func (p *Player) Notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done. A failed bus subscription is logged and the
// loop carries on with polling alone.
func (p *Player) Run(ctx context.Context) error {
	target := model.ScreenTarget(p.cfg.ScreenID)
	if p.cfg.Bus != nil {
		unsubscribe, err := p.cfg.Bus.Subscribe(ctx, target, func(bus.Event) { p.Notify() })
		if err != nil {
			p.logger.Warn().Err(err).Msg("invalidation subscribe failed, polling only")
		} else {
			defer unsubscribe()
		}
	}

	poll := time.NewTicker(p.cfg.PollInterval)
	defer poll.Stop()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	p.step(false)

	for {
		var timerC <-chan time.Time
		if wait, ok := p.nextWake(); ok {
			timer.Reset(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
			p.step(true)
		case <-poll.C:
			p.step(true)
		case <-timerC:
			p.step(false)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// step resolves and, if the answer changed, swaps content and restarts the
// dwell clock. fresh drops the cached snapshot first.
func (p *Player) step(fresh bool) {
	if fresh {
		p.cfg.Source.Invalidate(p.cfg.ScreenID)
	}
	now := p.cfg.Now()
	out, err := p.cfg.Engine.Evaluate(p.cfg.Source, p.cfg.ScreenID, now)
	decision := out.Decision

	p.mu.Lock()
	if err != nil && p.started {
		// keep playing what we have until the store answers again
		p.mu.Unlock()
		return
	}
	p.urgentStartsAt = out.UrgentStartsAt
	changed := !p.started || !decision.Same(p.current)
	switch {
	case changed:
		p.current = decision
		p.started = true
		p.dwellDeadline = dwellDeadline(decision, now)
	case !p.dwellDeadline.IsZero() && !now.Before(p.dwellDeadline):
		// same item again; restart its dwell
		p.dwellDeadline = dwellDeadline(decision, now)
	}
	p.mu.Unlock()

	if changed {
		p.logger.Debug().Str("kind", string(decision.Kind)).Int("slide_id", decision.SlideID).Msg("decision changed")
		p.cfg.OnChange(decision)
	}
}

func dwellDeadline(d model.PlaybackDecision, now time.Time) time.Time {
	if d.DurationSeconds == nil || *d.DurationSeconds <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(*d.DurationSeconds) * time.Second)
}

// nextWake is the time until the earliest of the dwell deadline, the
// urgent expiry and the start of a pending urgent window. Instants already behind us are ignored so a failed resolve
// cannot spin the loop; the poll picks those up.
func (p *Player) nextWake() (time.Duration, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.cfg.Now()
	var at time.Time
	consider := func(t time.Time) {
		if t.After(now) && (at.IsZero() || t.Before(at)) {
			at = t
		}
	}
	consider(p.dwellDeadline)
	consider(p.urgentStartsAt)
	if p.current.ExpiresAt != nil {
		consider(*p.current.ExpiresAt)
	}
	if at.IsZero() {
		return 0, false
	}
	return at.Sub(now), true
}
