package model

import "time"

type DecisionKind string

const (
	DecisionUrgent    DecisionKind = "urgent"
	DecisionManual    DecisionKind = "manual"
	DecisionScheduled DecisionKind = "scheduled"
	DecisionDefault   DecisionKind = "default"
)

// NoContentSlideID is the reserved id of the "no content configured"
// placeholder. Real slides are serial ids starting at 1.
const NoContentSlideID = 0

// PlaybackDecision is the single authoritative answer handed to the
// renderer for one screen at one instant.
type PlaybackDecision struct {
	Kind             DecisionKind `json:"kind"`
	SlideID          int          `json:"slide_id"`
	Scope            TargetType   `json:"scope,omitempty"`
	SourcePlaylistID *int         `json:"source_playlist_id,omitempty"`
	SourceItemID     *int         `json:"source_item_id,omitempty"`
	SourceRuleID     *int         `json:"source_rule_id,omitempty"`
	DurationSeconds  *int         `json:"duration_seconds,omitempty"`
	ExpiresAt        *time.Time   `json:"expires_at,omitempty"`
}

func NoContent() PlaybackDecision {
	return PlaybackDecision{Kind: DecisionDefault, SlideID: NoContentSlideID}
}

func (d PlaybackDecision) IsNoContent() bool {
	return d.Kind == DecisionDefault && d.SlideID == NoContentSlideID
}

// Same compares the parts of two decisions that matter to a player; two
// decisions that are Same never cause a content swap.
func (d PlaybackDecision) Same(o PlaybackDecision) bool {
	return d.Kind == o.Kind &&
		d.SlideID == o.SlideID &&
		d.Scope == o.Scope &&
		eqInt(d.SourcePlaylistID, o.SourcePlaylistID) &&
		eqInt(d.SourceItemID, o.SourceItemID) &&
		eqInt(d.SourceRuleID, o.SourceRuleID) &&
		eqTime(d.ExpiresAt, o.ExpiresAt)
}

func eqInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
