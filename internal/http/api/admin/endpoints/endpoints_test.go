package endpoints

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/bus"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/control"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/db"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/resolver"
)

const secret = "supersecret"

var wed0900 = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

// fakeStore keeps just enough state for the admin handlers. Methods the
// handlers never reach fall through to the nil embedded Store and panic.
type fakeStore struct {
	db.Store
	users     map[int]*model.User
	screens   map[int]*model.Screen
	groups    map[int]*model.ScreenGroup
	slides    map[int]model.Slide
	playlists map[int]model.Playlist
	rules     map[int]model.ScheduleRule
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[int]*model.User{
			1: {ID: 1, Email: "owner@example.com"},
			2: {ID: 2, Email: "other@example.com"},
		},
		screens: map[int]*model.Screen{
			10: {ID: 10, Name: "lobby", Timezone: "UTC", GroupID: intPtr(50), CreatedBy: 1},
			11: {ID: 11, Name: "elsewhere", Timezone: "UTC", CreatedBy: 2},
		},
		groups: map[int]*model.ScreenGroup{
			50: {ID: 50, Name: "floor 1", CreatedBy: 1},
		},
		slides: map[int]model.Slide{
			7: {ID: 7, Name: "menu", Type: "html", CreatedBy: 1},
			8: {ID: 8, Name: "foreign", Type: "html", CreatedBy: 2},
		},
		playlists: map[int]model.Playlist{
			20: {ID: 20, Name: "day", CreatedBy: 1, Items: []model.PlaylistItem{
				{ID: 201, PlaylistID: 20, SlideID: 7, Position: 1, Duration: 15},
			}},
			21: {ID: 21, Name: "night", CreatedBy: 1, Items: []model.PlaylistItem{
				{ID: 211, PlaylistID: 21, SlideID: 7, Position: 1},
			}},
		},
		rules:  map[int]model.ScheduleRule{},
		nextID: 1000,
	}
}

func intPtr(v int) *int { return &v }

func (f *fakeStore) GetUserByID(id int) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) GetScreenByID(id int) (model.Screen, error) {
	if s, ok := f.screens[id]; ok {
		return *s, nil
	}
	return model.Screen{}, sql.ErrNoRows
}

func (f *fakeStore) ListScreens(ownerID int) ([]model.Screen, error) {
	out := []model.Screen{}
	for _, s := range f.screens {
		if s.CreatedBy == ownerID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateScreen(name string, location *string, timezone string, createdBy int) (model.Screen, error) {
	f.nextID++
	if timezone == "" {
		timezone = "UTC"
	}
	s := &model.Screen{ID: f.nextID, Name: name, Location: location, Timezone: timezone, CreatedBy: createdBy}
	f.screens[s.ID] = s
	return *s, nil
}

func (f *fakeStore) GetScreenGroupByID(id int) (model.ScreenGroup, error) {
	if g, ok := f.groups[id]; ok {
		return *g, nil
	}
	return model.ScreenGroup{}, sql.ErrNoRows
}

func (f *fakeStore) ListScreensInGroup(groupID int) ([]model.Screen, error) {
	out := []model.Screen{}
	for _, s := range f.screens {
		if s.GroupID != nil && *s.GroupID == groupID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) overrides(t model.Target) (*model.Overrides, error) {
	switch t.Type {
	case model.TargetScreen:
		if s, ok := f.screens[t.ID]; ok {
			return &s.Overrides, nil
		}
	case model.TargetGroup:
		if g, ok := f.groups[t.ID]; ok {
			return &g.Overrides, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) SetManualOverride(t model.Target, slideID *int) error {
	o, err := f.overrides(t)
	if err != nil {
		return err
	}
	o.ActiveSlideID = slideID
	return nil
}

func (f *fakeStore) SetUrgentOverride(t model.Target, slideID *int, startsAt, expiresAt *time.Time) error {
	o, err := f.overrides(t)
	if err != nil {
		return err
	}
	o.UrgentSlideID, o.UrgentStartsAt, o.UrgentExpiresAt = slideID, startsAt, expiresAt
	return nil
}

func (f *fakeStore) ListActiveUrgent(ownerID int, now time.Time) ([]model.UrgentTarget, error) {
	out := []model.UrgentTarget{}
	for _, s := range f.screens {
		if s.CreatedBy != ownerID || !s.UrgentActive(now) {
			continue
		}
		out = append(out, model.UrgentTarget{
			Target:          s.Target(),
			Name:            s.Name,
			UrgentSlideID:   *s.UrgentSlideID,
			UrgentStartsAt:  *s.UrgentStartsAt,
			UrgentExpiresAt: *s.UrgentExpiresAt,
		})
	}
	return out, nil
}

func (f *fakeStore) GetSlideByID(id int) (model.Slide, error) {
	if s, ok := f.slides[id]; ok {
		return s, nil
	}
	return model.Slide{}, sql.ErrNoRows
}

func (f *fakeStore) SlidesExist(ids []int) (map[int]bool, error) {
	out := map[int]bool{}
	for _, id := range ids {
		_, out[id] = f.slides[id]
	}
	return out, nil
}

func (f *fakeStore) GetPlaylistByID(id int) (model.Playlist, error) {
	if p, ok := f.playlists[id]; ok {
		return p, nil
	}
	return model.Playlist{}, sql.ErrNoRows
}

func (f *fakeStore) GetPlaylistItem(itemID int) (model.PlaylistItem, error) {
	for _, p := range f.playlists {
		for _, it := range p.Items {
			if it.ID == itemID {
				return it, nil
			}
		}
	}
	return model.PlaylistItem{}, sql.ErrNoRows
}

func (f *fakeStore) CreateScheduleRule(rule model.ScheduleRule) (model.ScheduleRule, error) {
	f.nextID++
	rule.ID = f.nextID
	f.rules[rule.ID] = rule
	return rule, nil
}

func (f *fakeStore) GetScheduleRule(id int) (model.ScheduleRule, error) {
	if r, ok := f.rules[id]; ok {
		return r, nil
	}
	return model.ScheduleRule{}, sql.ErrNoRows
}

func (f *fakeStore) ListScheduleRules(t model.Target) ([]model.ScheduleRule, error) {
	out := []model.ScheduleRule{}
	for _, r := range f.rules {
		if r.Target() == t {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type harness struct {
	store  *fakeStore
	bus    *bus.LocalBus
	router *gin.Engine
}

func setup(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	b := bus.NewLocalBus()
	deps := Deps{
		Store:   store,
		Service: control.NewService(store, b),
		Engine:  resolver.NewEngine(time.UTC),
		Now:     func() time.Time { return wed0900 },
	}

	r := gin.New()
	api.MountGroup(r, api.GroupConfig{Prefix: "/api/admin", Auth: true, SecretKey: secret, Users: store},
		ScreenModule(deps),
		GroupModule(deps),
		PlaylistModule(deps),
		SlideModule(deps),
		ScheduleModule(deps),
		OverrideModule(deps),
	)
	return &harness{store: store, bus: b, router: r}
}

func (h *harness) do(t *testing.T, userID int, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": userID,
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+signed)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// events collects invalidations for target.
func (h *harness) events(t *testing.T, target model.Target) *[]bus.Event {
	t.Helper()
	var got []bus.Event
	unsubscribe, err := h.bus.Subscribe(context.Background(), target, func(ev bus.Event) { got = append(got, ev) })
	require.NoError(t, err)
	t.Cleanup(unsubscribe)
	return &got
}

func TestRequiresToken(t *testing.T) {
	h := setup(t)
	w := h.do(t, 0, http.MethodGet, "/api/admin/screens", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListScreensOnlyOwned(t *testing.T) {
	h := setup(t)
	w := h.do(t, 1, http.MethodGet, "/api/admin/screens", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.EqualValues(t, 10, out[0]["id"])
	assert.Equal(t, "UTC", out[0]["timezone"])
}

func TestGetScreenErrors(t *testing.T) {
	h := setup(t)
	assert.Equal(t, http.StatusBadRequest, h.do(t, 1, http.MethodGet, "/api/admin/screens/abc", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, 1, http.MethodGet, "/api/admin/screens/999", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, 1, http.MethodGet, "/api/admin/screens/11", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, 1, http.MethodGet, "/api/admin/screens/10", nil).Code)
}

func TestCreateScreenValidatesInput(t *testing.T) {
	h := setup(t)
	w := h.do(t, 1, http.MethodPost, "/api/admin/screens", map[string]any{"location": "hall"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, 1, http.MethodPost, "/api/admin/screens", map[string]any{"name": "hall", "timezone": "Mars/Olympus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, 1, http.MethodPost, "/api/admin/screens", map[string]any{"name": "hall", "timezone": "Europe/Paris"})
	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "Europe/Paris", out["timezone"])
}

func TestManualOverridePublishesInvalidation(t *testing.T) {
	h := setup(t)
	screenEvents := h.events(t, model.ScreenTarget(10))

	w := h.do(t, 1, http.MethodPut, "/api/admin/overrides/screen/10/manual", map[string]any{"slide_id": 7})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 7, *h.store.screens[10].ActiveSlideID)
	require.Len(t, *screenEvents, 1)
	assert.Equal(t, bus.ScreenUpdated, (*screenEvents)[0].Kind)

	w = h.do(t, 1, http.MethodDelete, "/api/admin/overrides/screen/10/manual", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, h.store.screens[10].ActiveSlideID)
	assert.Len(t, *screenEvents, 2)
}

func TestGroupOverrideReachesMembers(t *testing.T) {
	h := setup(t)
	memberEvents := h.events(t, model.ScreenTarget(10))

	w := h.do(t, 1, http.MethodPut, "/api/admin/overrides/group/50/manual", map[string]any{"slide_id": 7})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, *memberEvents, 1)
}

func TestOverrideRejects(t *testing.T) {
	h := setup(t)
	cases := []struct {
		name string
		path string
		body any
		code int
	}{
		{"bad target type", "/api/admin/overrides/wall/10/manual", map[string]any{"slide_id": 7}, http.StatusBadRequest},
		{"foreign screen", "/api/admin/overrides/screen/11/manual", map[string]any{"slide_id": 7}, http.StatusForbidden},
		{"unknown slide", "/api/admin/overrides/screen/10/manual", map[string]any{"slide_id": 99}, http.StatusBadRequest},
		{"foreign slide", "/api/admin/overrides/screen/10/manual", map[string]any{"slide_id": 8}, http.StatusForbidden},
		{"missing slide", "/api/admin/overrides/screen/10/manual", map[string]any{}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, h.do(t, 1, http.MethodPut, tc.path, tc.body).Code)
		})
	}
}

func TestUrgentOverrideLifecycle(t *testing.T) {
	h := setup(t)
	start := wed0900.Add(-time.Minute)

	w := h.do(t, 1, http.MethodPost, "/api/admin/overrides/screen/10/urgent", map[string]any{
		"slide_id":         7,
		"starts_at":        start,
		"duration_seconds": 600,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var urgent map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &urgent))
	assert.Equal(t, start.Add(10*time.Minute).Format(time.RFC3339), urgent["urgent_expires_at"])

	w = h.do(t, 1, http.MethodGet, "/api/admin/urgent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	require.Len(t, active, 1)
	assert.EqualValues(t, 10, active[0]["target_id"])

	w = h.do(t, 1, http.MethodGet, "/api/admin/screens/10/decision", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var preview struct {
		Decision model.PlaybackDecision `json:"decision"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, model.DecisionUrgent, preview.Decision.Kind)

	w = h.do(t, 1, http.MethodDelete, "/api/admin/overrides/screen/10/urgent", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, h.store.screens[10].UrgentSlideID)
}

func TestUrgentRequiresPositiveDuration(t *testing.T) {
	h := setup(t)
	w := h.do(t, 1, http.MethodPost, "/api/admin/overrides/screen/10/urgent", map[string]any{
		"slide_id":         7,
		"duration_seconds": -5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOvernightRuleSplitsAndPreviews(t *testing.T) {
	h := setup(t)
	w := h.do(t, 1, http.MethodPost, "/api/admin/schedules", map[string]any{
		"target_type":  "screen",
		"target_id":    10,
		"playlist_id":  21,
		"start_time":   "22:00",
		"end_time":     "02:00",
		"days_of_week": []int{3},
		"priority":     5,
		"overnight":    true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rules []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	require.Len(t, rules, 2)
	assert.Equal(t, "22:00", rules[0]["start_time"])
	assert.Equal(t, "24:00", rules[0]["end_time"])
	assert.Equal(t, []any{float64(3)}, rules[0]["days_of_week"])
	assert.Equal(t, "00:00", rules[1]["start_time"])
	assert.Equal(t, []any{float64(4)}, rules[1]["days_of_week"])

	for at, kind := range map[string]model.DecisionKind{
		"2024-05-15T23:30:00Z": model.DecisionScheduled,
		"2024-05-16T01:30:00Z": model.DecisionScheduled,
		"2024-05-16T03:00:00Z": model.DecisionDefault,
	} {
		w = h.do(t, 1, http.MethodGet, "/api/admin/screens/10/decision?at="+at, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var preview struct {
			At       string                 `json:"at"`
			Decision model.PlaybackDecision `json:"decision"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
		assert.Equal(t, at, preview.At)
		assert.Equal(t, kind, preview.Decision.Kind, at)
	}

	w = h.do(t, 1, http.MethodGet, "/api/admin/schedules?target_type=screen&target_id=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	assert.Len(t, rules, 2)
}

func TestCreateRuleRejectsBadWindow(t *testing.T) {
	h := setup(t)
	base := map[string]any{
		"target_type":  "screen",
		"target_id":    10,
		"playlist_id":  20,
		"start_time":   "17:00",
		"end_time":     "09:00",
		"days_of_week": []int{1},
	}
	assert.Equal(t, http.StatusBadRequest, h.do(t, 1, http.MethodPost, "/api/admin/schedules", base).Code)

	base["end_time"] = "18:00"
	base["days_of_week"] = []int{}
	assert.Equal(t, http.StatusBadRequest, h.do(t, 1, http.MethodPost, "/api/admin/schedules", base).Code)

	base["days_of_week"] = []int{9}
	assert.Equal(t, http.StatusBadRequest, h.do(t, 1, http.MethodPost, "/api/admin/schedules", base).Code)

	base["days_of_week"] = []int{1}
	base["playlist_id"] = 99
	assert.Equal(t, http.StatusBadRequest, h.do(t, 1, http.MethodPost, "/api/admin/schedules", base).Code)

	base["playlist_id"] = 20
	base["target_id"] = 11
	assert.Equal(t, http.StatusForbidden, h.do(t, 1, http.MethodPost, "/api/admin/schedules", base).Code)
	assert.Empty(t, h.store.rules)
}

func TestPreviewRejectsBadInstant(t *testing.T) {
	h := setup(t)
	w := h.do(t, 1, http.MethodGet, "/api/admin/screens/10/decision?at=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGroupPreviewAndMembers(t *testing.T) {
	h := setup(t)
	h.store.groups[50].DefaultPlaylistID = intPtr(20)

	w := h.do(t, 1, http.MethodGet, "/api/admin/groups/50/decision", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var preview struct {
		Decision model.PlaybackDecision `json:"decision"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, model.DecisionDefault, preview.Decision.Kind)
	assert.Equal(t, 7, preview.Decision.SlideID)
	assert.Equal(t, model.TargetGroup, preview.Decision.Scope)

	w = h.do(t, 1, http.MethodGet, "/api/admin/groups/50/screens", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var members []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	require.Len(t, members, 1)
	assert.EqualValues(t, 10, members[0]["id"])
}

func TestPlaylistItemMustBelongToPath(t *testing.T) {
	h := setup(t)
	w := h.do(t, 1, http.MethodPut, "/api/admin/playlists/20/items/211", map[string]any{"duration": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, 2, http.MethodGet, "/api/admin/playlists/20", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPlaylistItemRequiresPositiveDuration(t *testing.T) {
	h := setup(t)
	w := h.do(t, 1, http.MethodPost, "/api/admin/playlists/20/items", map[string]any{"slide_id": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, 1, http.MethodPut, "/api/admin/playlists/20/items/201", map[string]any{"duration": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFromErrorMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, api.FromError(sql.ErrNoRows, "screen").Code)
	assert.Equal(t, http.StatusBadRequest, api.FromError(model.ErrInvalidWindow, "rule").Code)
	assert.Equal(t, http.StatusBadRequest, api.FromError(control.ErrUnknownSlide, "screen").Code)
	assert.Equal(t, http.StatusInternalServerError, api.FromError(assert.AnError, "screen").Code)
}
