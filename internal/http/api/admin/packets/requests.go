package packets

// REQUESTS FOR /api/admin/*

import (
	"encoding/json"
	"time"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

type CreateScreenRequest struct {
	Name     string  `json:"name" binding:"required"`
	Location *string `json:"location"`
	Timezone string  `json:"timezone"`
}

type UpdateScreenRequest struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
	Timezone *string `json:"timezone"`
}

// PairScreenRequest binds a TV device; a null device_id unpairs.
type PairScreenRequest struct {
	DeviceID *string `json:"device_id"`
}

// SetGroupRequest moves a screen; a null group_id makes it standalone.
type SetGroupRequest struct {
	GroupID *int `json:"group_id"`
}

// SetDefaultPlaylistRequest sets or, with null, clears a default playlist.
type SetDefaultPlaylistRequest struct {
	PlaylistID *int `json:"playlist_id"`
}

type CreateGroupRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type CreatePlaylistRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type AddPlaylistItemRequest struct {
	SlideID           int              `json:"slide_id" binding:"required"`
	Position          int              `json:"position"`
	Duration          int              `json:"duration"`
	SchedulePredicate *model.Predicate `json:"schedule_predicate"`
}

type UpdatePlaylistItemRequest struct {
	Position          *int             `json:"position"`
	Duration          *int             `json:"duration"`
	SchedulePredicate *model.Predicate `json:"schedule_predicate"`
}

type ReorderPlaylistRequest struct {
	ItemIDs []int `json:"item_ids" binding:"required"`
}

type CreateSlideRequest struct {
	Name string          `json:"name" binding:"required"`
	Type string          `json:"type" binding:"required"`
	Body json.RawMessage `json:"body"`
}

// CreateScheduleRuleRequest describes a recurring window in the target's
// local time. With overnight set, an end at or before the start wraps past
// midnight and is stored as two rules.
type CreateScheduleRuleRequest struct {
	TargetType model.TargetType `json:"target_type" binding:"required"`
	TargetID   int              `json:"target_id" binding:"required"`
	PlaylistID int              `json:"playlist_id" binding:"required"`
	StartTime  *model.TimeOfDay `json:"start_time" binding:"required"`
	EndTime    *model.TimeOfDay `json:"end_time" binding:"required"`
	DaysOfWeek model.DaySet     `json:"days_of_week"`
	Priority   int              `json:"priority"`
	Overnight  bool             `json:"overnight"`
}

type UpdateScheduleRuleRequest struct {
	PlaylistID int              `json:"playlist_id" binding:"required"`
	StartTime  *model.TimeOfDay `json:"start_time" binding:"required"`
	EndTime    *model.TimeOfDay `json:"end_time" binding:"required"`
	DaysOfWeek model.DaySet     `json:"days_of_week"`
	Priority   int              `json:"priority"`
}

type ManualOverrideRequest struct {
	SlideID int `json:"slide_id" binding:"required"`
}

// UrgentOverrideRequest arms an urgent slide; starts_at defaults to now.
type UrgentOverrideRequest struct {
	SlideID         int        `json:"slide_id" binding:"required"`
	StartsAt        *time.Time `json:"starts_at"`
	DurationSeconds int        `json:"duration_seconds" binding:"required"`
}
