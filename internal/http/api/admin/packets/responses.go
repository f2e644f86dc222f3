package packets

// RESPONSES FOR /api/admin/*

import (
	"encoding/json"
	"time"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// OverridesResponse flattens the override slots, times as RFC3339.
type OverridesResponse struct {
	ActiveSlideID   *int    `json:"active_slide_id"`
	UrgentSlideID   *int    `json:"urgent_slide_id"`
	UrgentStartsAt  *string `json:"urgent_starts_at"`
	UrgentExpiresAt *string `json:"urgent_expires_at"`
}

// ScreenResponse mirrors model.Screen but flattens times to RFC3339
type ScreenResponse struct {
	ID                int               `json:"id"`
	DeviceID          *string           `json:"device_id"`
	Name              string            `json:"name"`
	Location          *string           `json:"location"`
	Timezone          string            `json:"timezone"`
	GroupID           *int              `json:"group_id"`
	DefaultPlaylistID *int              `json:"default_playlist_id"`
	Overrides         OverridesResponse `json:"overrides"`
	CreatedAt         string            `json:"created_at"`
	UpdatedAt         string            `json:"updated_at"`
}

type GroupResponse struct {
	ID                int               `json:"id"`
	Name              string            `json:"name"`
	Description       *string           `json:"description"`
	DefaultPlaylistID *int              `json:"default_playlist_id"`
	Overrides         OverridesResponse `json:"overrides"`
	CreatedAt         string            `json:"created_at"`
	UpdatedAt         string            `json:"updated_at"`
}

type SlideResponse struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Body      json.RawMessage `json:"body,omitempty"`
	CreatedAt string          `json:"created_at"`
}

type PlaylistItemResponse struct {
	ID                int             `json:"id"`
	SlideID           int             `json:"slide_id"`
	Position          int             `json:"position"`
	Duration          int             `json:"duration"`
	SchedulePredicate model.Predicate `json:"schedule_predicate"`
	CreatedAt         string          `json:"created_at"`
}

type PlaylistResponse struct {
	ID          int                    `json:"id"`
	Name        string                 `json:"name"`
	Description *string                `json:"description"`
	CreatedAt   string                 `json:"created_at"`
	UpdatedAt   string                 `json:"updated_at"`
	Items       []PlaylistItemResponse `json:"items"`
}

type ScheduleRuleResponse struct {
	ID         int              `json:"id"`
	TargetType model.TargetType `json:"target_type"`
	TargetID   int              `json:"target_id"`
	PlaylistID int              `json:"playlist_id"`
	StartTime  model.TimeOfDay  `json:"start_time"`
	EndTime    model.TimeOfDay  `json:"end_time"`
	DaysOfWeek model.DaySet     `json:"days_of_week"`
	Priority   int              `json:"priority"`
	CreatedAt  string           `json:"created_at"`
	UpdatedAt  string           `json:"updated_at"`
}

type UrgentResponse struct {
	TargetType      model.TargetType `json:"target_type"`
	TargetID        int              `json:"target_id"`
	Name            string           `json:"name"`
	SlideID         int              `json:"slide_id"`
	UrgentStartsAt  string           `json:"urgent_starts_at"`
	UrgentExpiresAt string           `json:"urgent_expires_at"`
}

// DecisionResponse is a preview of what a target would play at At.
type DecisionResponse struct {
	At       string                 `json:"at"`
	Decision model.PlaybackDecision `json:"decision"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func NewOverridesResponse(o model.Overrides) OverridesResponse {
	return OverridesResponse{
		ActiveSlideID:   o.ActiveSlideID,
		UrgentSlideID:   o.UrgentSlideID,
		UrgentStartsAt:  formatTime(o.UrgentStartsAt),
		UrgentExpiresAt: formatTime(o.UrgentExpiresAt),
	}
}

func NewScreenResponse(s model.Screen) ScreenResponse {
	return ScreenResponse{
		ID:                s.ID,
		DeviceID:          s.DeviceID,
		Name:              s.Name,
		Location:          s.Location,
		Timezone:          s.Timezone,
		GroupID:           s.GroupID,
		DefaultPlaylistID: s.DefaultPlaylistID,
		Overrides:         NewOverridesResponse(s.Overrides),
		CreatedAt:         s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         s.UpdatedAt.Format(time.RFC3339),
	}
}

func NewGroupResponse(g model.ScreenGroup) GroupResponse {
	return GroupResponse{
		ID:                g.ID,
		Name:              g.Name,
		Description:       g.Description,
		DefaultPlaylistID: g.DefaultPlaylistID,
		Overrides:         NewOverridesResponse(g.Overrides),
		CreatedAt:         g.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         g.UpdatedAt.Format(time.RFC3339),
	}
}

func NewSlideResponse(s model.Slide) SlideResponse {
	return SlideResponse{
		ID:        s.ID,
		Name:      s.Name,
		Type:      s.Type,
		Body:      s.Body,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func NewPlaylistItemResponse(it model.PlaylistItem) PlaylistItemResponse {
	return PlaylistItemResponse{
		ID:                it.ID,
		SlideID:           it.SlideID,
		Position:          it.Position,
		Duration:          it.Duration,
		SchedulePredicate: it.Predicate,
		CreatedAt:         it.CreatedAt.Format(time.RFC3339),
	}
}

func NewPlaylistResponse(p model.Playlist) PlaylistResponse {
	items := make([]PlaylistItemResponse, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, NewPlaylistItemResponse(it))
	}
	return PlaylistResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
		Items:       items,
	}
}

func NewScheduleRuleResponse(r model.ScheduleRule) ScheduleRuleResponse {
	return ScheduleRuleResponse{
		ID:         r.ID,
		TargetType: r.TargetType,
		TargetID:   r.TargetID,
		PlaylistID: r.PlaylistID,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		DaysOfWeek: r.Days,
		Priority:   r.Priority,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  r.UpdatedAt.Format(time.RFC3339),
	}
}

func NewUrgentResponse(u model.UrgentTarget) UrgentResponse {
	return UrgentResponse{
		TargetType:      u.Type,
		TargetID:        u.ID,
		Name:            u.Name,
		SlideID:         u.UrgentSlideID,
		UrgentStartsAt:  u.UrgentStartsAt.Format(time.RFC3339),
		UrgentExpiresAt: u.UrgentExpiresAt.Format(time.RFC3339),
	}
}
