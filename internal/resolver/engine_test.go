package resolver

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// memStore is an in-memory Store for resolver tests.
type memStore struct {
	screens   map[int]model.Screen
	groups    map[int]model.ScreenGroup
	rules     map[int]model.ScheduleRule
	playlists map[int]model.Playlist
	slides    map[int]bool
	nextRule  int
	fail      error
	loads     int
}

func newMemStore() *memStore {
	return &memStore{
		screens:   map[int]model.Screen{},
		groups:    map[int]model.ScreenGroup{},
		rules:     map[int]model.ScheduleRule{},
		playlists: map[int]model.Playlist{},
		slides:    map[int]bool{},
		nextRule:  1,
	}
}

func (m *memStore) GetScreenByID(id int) (model.Screen, error) {
	m.loads++
	if m.fail != nil {
		return model.Screen{}, m.fail
	}
	s, ok := m.screens[id]
	if !ok {
		return model.Screen{}, sql.ErrNoRows
	}
	return s, nil
}

func (m *memStore) GetScreenGroupByID(id int) (model.ScreenGroup, error) {
	g, ok := m.groups[id]
	if !ok {
		return model.ScreenGroup{}, sql.ErrNoRows
	}
	return g, nil
}

func (m *memStore) ListScheduleRules(t model.Target) ([]model.ScheduleRule, error) {
	var out []model.ScheduleRule
	for _, r := range m.rules {
		if r.Target() == t {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) GetPlaylistByID(id int) (model.Playlist, error) {
	p, ok := m.playlists[id]
	if !ok {
		return model.Playlist{}, sql.ErrNoRows
	}
	return p, nil
}

func (m *memStore) SlidesExist(ids []int) (map[int]bool, error) {
	out := map[int]bool{}
	for _, id := range ids {
		out[id] = m.slides[id]
	}
	return out, nil
}

func (m *memStore) addRule(r model.ScheduleRule) int {
	if r.ID == 0 {
		r.ID = m.nextRule
	}
	if r.ID >= m.nextRule {
		m.nextRule = r.ID + 1
	}
	m.rules[r.ID] = r
	return r.ID
}

func (m *memStore) addPlaylist(id int, slideIDs ...int) {
	p := model.Playlist{ID: id, Name: "playlist"}
	for i, slide := range slideIDs {
		p.Items = append(p.Items, model.PlaylistItem{
			ID: id*100 + i + 1, PlaylistID: id, SlideID: slide, Position: i + 1, Duration: 10,
		})
		m.slides[slide] = true
	}
	m.playlists[id] = p
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

var (
	// 2024-05-15 is a Wednesday
	wed0900  = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)
	wed1800  = time.Date(2024, 5, 15, 18, 0, 0, 0, time.UTC)
	weekdays = model.NewDaySet(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
)

func businessHours(target model.Target, playlistID, priority int) model.ScheduleRule {
	return model.ScheduleRule{
		TargetType: target.Type,
		TargetID:   target.ID,
		PlaylistID: playlistID,
		StartTime:  model.NewTimeOfDay(8, 0),
		EndTime:    model.NewTimeOfDay(17, 0),
		Days:       weekdays,
		Priority:   priority,
	}
}

func resolve(t *testing.T, store *memStore, screenID int, now time.Time) model.PlaybackDecision {
	t.Helper()
	d, err := NewEngine(time.UTC).Resolve(NewLoader(store), screenID, now)
	require.NoError(t, err)
	return d
}

func TestScenarioA_ScheduledThenDefault(t *testing.T) {
	store := newMemStore()
	store.screens[1] = model.Screen{ID: 1, Name: "S", Timezone: "UTC"}
	store.addPlaylist(10, 100)
	ruleID := store.addRule(businessHours(model.ScreenTarget(1), 10, 1))

	d := resolve(t, store, 1, wed0900)
	assert.Equal(t, model.DecisionScheduled, d.Kind)
	assert.Equal(t, 100, d.SlideID)
	assert.Equal(t, model.TargetScreen, d.Scope)
	require.NotNil(t, d.SourceRuleID)
	assert.Equal(t, ruleID, *d.SourceRuleID)
	require.NotNil(t, d.SourcePlaylistID)
	assert.Equal(t, 10, *d.SourcePlaylistID)
	require.NotNil(t, d.DurationSeconds)
	assert.Equal(t, 10, *d.DurationSeconds)

	assert.True(t, resolve(t, store, 1, wed1800).IsNoContent())

	store.addPlaylist(20, 200)
	store.screens[1] = model.Screen{ID: 1, Name: "S", Timezone: "UTC", DefaultPlaylistID: intPtr(20)}
	d = resolve(t, store, 1, wed1800)
	assert.Equal(t, model.DecisionDefault, d.Kind)
	assert.Equal(t, 200, d.SlideID)
	assert.Nil(t, d.SourceRuleID)
}

func TestScenarioB_UrgentExpires(t *testing.T) {
	t0 := wed0900
	store := newMemStore()
	store.slides[7] = true
	store.addPlaylist(20, 200)
	store.screens[1] = model.Screen{
		ID: 1, Timezone: "UTC", DefaultPlaylistID: intPtr(20),
		Overrides: model.Overrides{
			UrgentSlideID:   intPtr(7),
			UrgentStartsAt:  timePtr(t0),
			UrgentExpiresAt: timePtr(t0.Add(15 * time.Minute)),
		},
	}

	d := resolve(t, store, 1, t0.Add(14*time.Minute))
	assert.Equal(t, model.DecisionUrgent, d.Kind)
	assert.Equal(t, 7, d.SlideID)
	require.NotNil(t, d.ExpiresAt)
	assert.True(t, d.ExpiresAt.Equal(t0.Add(15*time.Minute)))

	d = resolve(t, store, 1, t0.Add(16*time.Minute))
	assert.Equal(t, model.DecisionDefault, d.Kind)
	assert.Equal(t, 200, d.SlideID)
}

func TestScenarioC_ScreenManualBeatsGroupManual(t *testing.T) {
	store := newMemStore()
	store.slides[26] = true // Z
	store.slides[23] = true // W
	store.groups[5] = model.ScreenGroup{ID: 5, Overrides: model.Overrides{ActiveSlideID: intPtr(26)}}
	store.screens[1] = model.Screen{ID: 1, Timezone: "UTC", GroupID: intPtr(5)}

	d := resolve(t, store, 1, wed0900)
	assert.Equal(t, model.DecisionManual, d.Kind)
	assert.Equal(t, 26, d.SlideID)
	assert.Equal(t, model.TargetGroup, d.Scope)

	s := store.screens[1]
	s.ActiveSlideID = intPtr(23)
	store.screens[1] = s

	d = resolve(t, store, 1, wed0900)
	assert.Equal(t, model.DecisionManual, d.Kind)
	assert.Equal(t, 23, d.SlideID)
	assert.Equal(t, model.TargetScreen, d.Scope)
}

func TestScenarioD_HigherPriorityWinsRegardlessOfOrder(t *testing.T) {
	store := newMemStore()
	store.screens[1] = model.Screen{ID: 1, Timezone: "UTC"}
	store.addPlaylist(10, 100)
	store.addPlaylist(11, 110)
	// the priority-2 rule is created second
	store.addRule(businessHours(model.ScreenTarget(1), 10, 1))
	store.addRule(businessHours(model.ScreenTarget(1), 11, 2))

	d := resolve(t, store, 1, wed0900)
	assert.Equal(t, 110, d.SlideID)
	assert.Equal(t, 11, *d.SourcePlaylistID)
}

func TestRoundTripCreateDeleteRule(t *testing.T) {
	store := newMemStore()
	store.addPlaylist(20, 200)
	store.addPlaylist(10, 100)
	store.screens[1] = model.Screen{ID: 1, Timezone: "UTC", DefaultPlaylistID: intPtr(20)}

	before := resolve(t, store, 1, wed0900)

	id := store.addRule(businessHours(model.ScreenTarget(1), 10, 3))
	during := resolve(t, store, 1, wed0900)
	assert.False(t, before.Same(during))

	delete(store.rules, id)
	after := resolve(t, store, 1, wed0900)
	assert.Equal(t, before, after)
}

func TestUrgentDominatesManualAndSchedule(t *testing.T) {
	store := newMemStore()
	store.slides[1] = true
	store.slides[2] = true
	store.addPlaylist(10, 100)
	store.addRule(businessHours(model.ScreenTarget(1), 10, 1000))
	store.groups[5] = model.ScreenGroup{ID: 5, Overrides: model.Overrides{
		UrgentSlideID:   intPtr(1),
		UrgentStartsAt:  timePtr(wed0900.Add(-time.Hour)),
		UrgentExpiresAt: timePtr(wed0900.Add(time.Hour)),
	}}
	store.screens[1] = model.Screen{ID: 1, Timezone: "UTC", GroupID: intPtr(5),
		Overrides: model.Overrides{ActiveSlideID: intPtr(2)}}

	d := resolve(t, store, 1, wed0900)
	assert.Equal(t, model.DecisionUrgent, d.Kind)
	assert.Equal(t, 1, d.SlideID)
	assert.Equal(t, model.TargetGroup, d.Scope)
}

func TestScreenUrgentBeatsGroupUrgent(t *testing.T) {
	store := newMemStore()
	store.slides[1] = true
	store.slides[2] = true
	live := model.Overrides{
		UrgentStartsAt:  timePtr(wed0900.Add(-time.Minute)),
		UrgentExpiresAt: timePtr(wed0900.Add(time.Minute)),
	}
	groupSlot := live
	groupSlot.UrgentSlideID = intPtr(1)
	screenSlot := live
	screenSlot.UrgentSlideID = intPtr(2)
	store.groups[5] = model.ScreenGroup{ID: 5, Overrides: groupSlot}
	store.screens[1] = model.Screen{ID: 1, GroupID: intPtr(5), Overrides: screenSlot}

	d := resolve(t, store, 1, wed0900)
	assert.Equal(t, 2, d.SlideID)
	assert.Equal(t, model.TargetScreen, d.Scope)
}

func TestUrgentBoundaries(t *testing.T) {
	store := newMemStore()
	store.slides[7] = true
	start := wed0900
	end := wed0900.Add(time.Hour)
	store.screens[1] = model.Screen{ID: 1, Overrides: model.Overrides{
		UrgentSlideID: intPtr(7), UrgentStartsAt: &start, UrgentExpiresAt: &end,
	}}

	assert.Equal(t, model.DecisionUrgent, resolve(t, store, 1, start).Kind)
	assert.True(t, resolve(t, store, 1, end).IsNoContent())
	assert.True(t, resolve(t, store, 1, start.Add(-time.Nanosecond)).IsNoContent())
}

func TestRuleStartInclusiveEndExclusive(t *testing.T) {
	store := newMemStore()
	store.screens[1] = model.Screen{ID: 1, Timezone: "UTC"}
	store.addPlaylist(10, 100)
	store.addRule(businessHours(model.ScreenTarget(1), 10, 1))

	at := func(h, m int) time.Time { return time.Date(2024, 5, 15, h, m, 0, 0, time.UTC) }
	assert.Equal(t, model.DecisionScheduled, resolve(t, store, 1, at(8, 0)).Kind)
	assert.Equal(t, model.DecisionScheduled, resolve(t, store, 1, at(16, 59)).Kind)
	assert.True(t, resolve(t, store, 1, at(17, 0)).IsNoContent())
	assert.True(t, resolve(t, store, 1, at(7, 59)).IsNoContent())
}

func TestEqualPriorityTieBreaks(t *testing.T) {
	store := newMemStore()
	store.addPlaylist(10, 100)
	store.addPlaylist(11, 110)
	store.addPlaylist(12, 120)
	store.groups[5] = model.ScreenGroup{ID: 5}
	store.screens[1] = model.Screen{ID: 1, GroupID: intPtr(5)}

	// group rule has the lowest id but screen rules win the tie
	g := businessHours(model.GroupTarget(5), 12, 1)
	g.ID = 1
	store.addRule(g)
	later := businessHours(model.ScreenTarget(1), 11, 1)
	later.ID = 9
	store.addRule(later)
	earlier := businessHours(model.ScreenTarget(1), 10, 1)
	earlier.ID = 4
	store.addRule(earlier)

	for i := 0; i < 20; i++ {
		d := resolve(t, store, 1, wed0900)
		require.Equal(t, 100, d.SlideID)
		require.Equal(t, 4, *d.SourceRuleID)
	}

	delete(store.rules, 4)
	delete(store.rules, 9)
	d := resolve(t, store, 1, wed0900)
	assert.Equal(t, 120, d.SlideID)
	assert.Equal(t, model.TargetGroup, d.Scope)
}

func TestDanglingReferencesAreSkipped(t *testing.T) {
	store := newMemStore()
	store.addPlaylist(20, 200)
	store.screens[1] = model.Screen{
		ID: 1, GroupID: intPtr(404), DefaultPlaylistID: intPtr(20),
		Overrides: model.Overrides{ActiveSlideID: intPtr(999)},
	}
	// rule pointing at a deleted playlist, at the highest priority
	store.addRule(businessHours(model.ScreenTarget(1), 77, 50))

	// playlist whose only slide was deleted
	store.playlists[30] = model.Playlist{ID: 30, Items: []model.PlaylistItem{{ID: 1, SlideID: 555, Position: 1}}}
	store.addRule(businessHours(model.ScreenTarget(1), 30, 40))

	d := resolve(t, store, 1, wed0900)
	assert.Equal(t, model.DecisionDefault, d.Kind)
	assert.Equal(t, 200, d.SlideID)
}

func TestItemPredicateSkipsToNextItem(t *testing.T) {
	store := newMemStore()
	store.screens[1] = model.Screen{ID: 1}
	store.addPlaylist(10, 100, 101)
	p := store.playlists[10]
	p.Items[0].Predicate = model.WindowPredicate(model.Window{
		Days: model.AllDays, Start: model.NewTimeOfDay(12, 0), End: model.NewTimeOfDay(13, 0),
	})
	store.playlists[10] = p
	store.addRule(businessHours(model.ScreenTarget(1), 10, 1))

	assert.Equal(t, 101, resolve(t, store, 1, wed0900).SlideID)
	assert.Equal(t, 100, resolve(t, store, 1, time.Date(2024, 5, 15, 12, 30, 0, 0, time.UTC)).SlideID)
}

func TestRuleWithNoEligibleItemFallsThrough(t *testing.T) {
	store := newMemStore()
	store.screens[1] = model.Screen{ID: 1}
	store.addPlaylist(10, 100)
	p := store.playlists[10]
	p.Items[0].Predicate = model.WindowPredicate(model.Window{
		Days: model.NewDaySet(time.Sunday), Start: 0, End: model.NewTimeOfDay(24, 0),
	})
	store.playlists[10] = p
	store.addPlaylist(11, 110)
	store.addRule(businessHours(model.ScreenTarget(1), 10, 5))
	store.addRule(businessHours(model.ScreenTarget(1), 11, 1))

	d := resolve(t, store, 1, wed0900)
	assert.Equal(t, 110, d.SlideID)
}

func TestScheduleUsesScreenLocalTime(t *testing.T) {
	store := newMemStore()
	store.addPlaylist(10, 100)
	store.screens[1] = model.Screen{ID: 1, Timezone: "America/New_York"}
	store.addRule(businessHours(model.ScreenTarget(1), 10, 1))

	// 13:00 UTC is 09:00 in New York (EDT)
	d := resolve(t, store, 1, time.Date(2024, 5, 15, 13, 0, 0, 0, time.UTC))
	assert.Equal(t, model.DecisionScheduled, d.Kind)

	// 09:00 UTC is 05:00 in New York
	assert.True(t, resolve(t, store, 1, wed0900).IsNoContent())
}

func TestUnknownScreenIsNoContent(t *testing.T) {
	d := resolve(t, newMemStore(), 42, wed0900)
	assert.True(t, d.IsNoContent())
	assert.Equal(t, model.NoContentSlideID, d.SlideID)
}

func TestLoadFailureReturnsPlaceholderAndError(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection reset")

	d, err := NewEngine(nil).Resolve(NewLoader(store), 1, wed0900)
	assert.Error(t, err)
	assert.True(t, d.IsNoContent())
}

func TestDecideIsPure(t *testing.T) {
	store := newMemStore()
	store.addPlaylist(10, 100, 101)
	store.groups[5] = model.ScreenGroup{ID: 5, DefaultPlaylistID: intPtr(10)}
	store.screens[1] = model.Screen{ID: 1, GroupID: intPtr(5)}
	store.addRule(businessHours(model.GroupTarget(5), 10, 1))

	snap, err := NewLoader(store).ScreenSnapshot(1)
	require.NoError(t, err)

	e := NewEngine(time.UTC)
	first := e.Decide(snap, wed0900)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Decide(snap, wed0900))
	}
}

func TestResolveGroupPreview(t *testing.T) {
	store := newMemStore()
	store.addPlaylist(10, 100)
	store.slides[9] = true
	store.groups[5] = model.ScreenGroup{ID: 5, DefaultPlaylistID: intPtr(10)}
	e := NewEngine(time.UTC)

	d, err := e.ResolveGroup(NewLoader(store), 5, wed0900)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionDefault, d.Kind)
	assert.Equal(t, model.TargetGroup, d.Scope)

	g := store.groups[5]
	g.ActiveSlideID = intPtr(9)
	store.groups[5] = g
	d, err = e.ResolveGroup(NewLoader(store), 5, wed0900)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionManual, d.Kind)

	d, err = e.ResolveGroup(NewLoader(store), 6, wed0900)
	require.NoError(t, err)
	assert.True(t, d.IsNoContent())
}

func TestEvaluateReportsPendingUrgentStart(t *testing.T) {
	store := newMemStore()
	store.slides[7] = true
	store.slides[8] = true
	store.groups[5] = model.ScreenGroup{
		ID: 5,
		Overrides: model.Overrides{
			UrgentSlideID:   intPtr(8),
			UrgentStartsAt:  timePtr(wed0900.Add(10 * time.Minute)),
			UrgentExpiresAt: timePtr(wed0900.Add(20 * time.Minute)),
		},
	}
	store.screens[1] = model.Screen{
		ID: 1, Timezone: "UTC", GroupID: intPtr(5),
		Overrides: model.Overrides{
			UrgentSlideID:   intPtr(7),
			UrgentStartsAt:  timePtr(wed0900.Add(30 * time.Minute)),
			UrgentExpiresAt: timePtr(wed0900.Add(40 * time.Minute)),
		},
	}
	engine := NewEngine(time.UTC)

	out, err := engine.Evaluate(NewLoader(store), 1, wed0900)
	require.NoError(t, err)
	assert.True(t, out.Decision.IsNoContent())
	assert.True(t, out.UrgentStartsAt.Equal(wed0900.Add(10*time.Minute)), "group window opens first")

	// once the group window is live only the screen's is still pending
	out, err = engine.Evaluate(NewLoader(store), 1, wed0900.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.DecisionUrgent, out.Decision.Kind)
	assert.Equal(t, 8, out.Decision.SlideID)
	assert.True(t, out.UrgentStartsAt.Equal(wed0900.Add(30*time.Minute)))

	out, err = engine.Evaluate(NewLoader(store), 1, wed0900.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 7, out.Decision.SlideID)
	assert.True(t, out.UrgentStartsAt.IsZero())
}
