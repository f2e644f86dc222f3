package resolver

import (
	"sort"
	"time"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// Snapshot is an immutable view of everything one resolution needs: the
// target rows, the schedule rules of screen and group, and the playlists and
// slides those reference. Anything referenced but absent is dangling.
type Snapshot struct {
	Screen    *model.Screen
	Group     *model.ScreenGroup
	Rules     []model.ScheduleRule
	Playlists map[int]model.Playlist
	Slides    map[int]bool
}

// NewSnapshot copies rules into evaluation order: priority descending, then
// screen rules before group rules, then lowest id.
func NewSnapshot(screen *model.Screen, group *model.ScreenGroup, rules []model.ScheduleRule,
	playlists map[int]model.Playlist, slides map[int]bool) *Snapshot {

	ordered := make([]model.ScheduleRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.TargetType != b.TargetType {
			return a.TargetType == model.TargetScreen
		}
		return a.ID < b.ID
	})
	if playlists == nil {
		playlists = map[int]model.Playlist{}
	}
	if slides == nil {
		slides = map[int]bool{}
	}
	return &Snapshot{
		Screen:    screen,
		Group:     group,
		Rules:     ordered,
		Playlists: playlists,
		Slides:    slides,
	}
}

// layer is one scope's overrides and default, screen first.
type layer struct {
	target          model.Target
	overrides       model.Overrides
	defaultPlaylist *int
}

func (s *Snapshot) layers() []layer {
	out := make([]layer, 0, 2)
	if s.Screen != nil {
		out = append(out, layer{s.Screen.Target(), s.Screen.Overrides, s.Screen.DefaultPlaylistID})
	}
	if s.Group != nil {
		out = append(out, layer{s.Group.Target(), s.Group.Overrides, s.Group.DefaultPlaylistID})
	}
	return out
}

func (s *Snapshot) location(fallback *time.Location) *time.Location {
	if s.Screen == nil {
		return fallback
	}
	return s.Screen.Zone(fallback)
}

// nextUrgentStart is the earliest urgent window that opens after now. Slots
// that are empty or never open are ignored.
func (s *Snapshot) nextUrgentStart(now time.Time) time.Time {
	var at time.Time
	for _, l := range s.layers() {
		o := l.overrides
		if o.UrgentSlideID == nil || o.UrgentStartsAt == nil || o.UrgentExpiresAt == nil {
			continue
		}
		start := *o.UrgentStartsAt
		if !start.After(now) || !o.UrgentExpiresAt.After(start) {
			continue
		}
		if at.IsZero() || start.Before(at) {
			at = start
		}
	}
	return at
}

// subject is the target a resolution was asked about, for log fields.
func (s *Snapshot) subject() model.Target {
	if s.Screen != nil {
		return s.Screen.Target()
	}
	if s.Group != nil {
		return s.Group.Target()
	}
	return model.Target{}
}

// referencedSlides lists every slide id the snapshot may need to check.
func referencedSlides(screen *model.Screen, group *model.ScreenGroup, playlists map[int]model.Playlist) []int {
	seen := map[int]struct{}{}
	add := func(id *int) {
		if id != nil {
			seen[*id] = struct{}{}
		}
	}
	if screen != nil {
		add(screen.ActiveSlideID)
		add(screen.UrgentSlideID)
	}
	if group != nil {
		add(group.ActiveSlideID)
		add(group.UrgentSlideID)
	}
	for _, p := range playlists {
		for i := range p.Items {
			add(&p.Items[i].SlideID)
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
