package model

import "time"

// ScheduleRule binds a target to a playlist on a recurring local window.
// Higher priority wins; ties go to screen rules, then to the lower id.
type ScheduleRule struct {
	ID         int        `db:"id"           json:"id"`
	TargetType TargetType `db:"target_type"  json:"target_type"`
	TargetID   int        `db:"target_id"    json:"target_id"`
	PlaylistID int        `db:"playlist_id"  json:"playlist_id"`
	StartTime  TimeOfDay  `db:"start_time"   json:"start_time"`
	EndTime    TimeOfDay  `db:"end_time"     json:"end_time"`
	Days       DaySet     `db:"days_of_week" json:"days_of_week"`
	Priority   int        `db:"priority"     json:"priority"`
	CreatedBy  int        `db:"created_by"   json:"created_by"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}

func (r ScheduleRule) Target() Target {
	return Target{Type: r.TargetType, ID: r.TargetID}
}

func (r ScheduleRule) Window() Window {
	return Window{Days: r.Days, Start: r.StartTime, End: r.EndTime}
}
