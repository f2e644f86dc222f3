package packets

// RESPONSES FOR /api/tv/devices/*

import "github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"

// DecisionResponse is what a TV plays right now. ScreenID is zero for a
// device that is not paired, in which case Decision is the placeholder.
type DecisionResponse struct {
	ScreenID   int                    `json:"screen_id"`
	ServerTime string                 `json:"server_time"`
	Decision   model.PlaybackDecision `json:"decision"`
}

// SessionMessage is pushed over the websocket each time the decision for
// the session's screen changes.
type SessionMessage struct {
	Type       string                 `json:"type"`
	ScreenID   int                    `json:"screen_id"`
	ServerTime string                 `json:"server_time"`
	Decision   model.PlaybackDecision `json:"decision"`
}

const MessageDecision = "decision"
