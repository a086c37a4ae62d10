package models

type EventType string

const (
	EventCardsDealt        EventType = "cards_dealt"
	EventPlayerHit         EventType = "player_hit"
	EventPlayerBust        EventType = "player_bust"
	EventPlayerDoubledDown EventType = "player_doubled_down"
	EventPlayerStood       EventType = "player_stood"
	EventDealerPlayed      EventType = "dealer_played"
	EventGameResolved      EventType = "game_resolved"
	EventStepFailed        EventType = "step_failed"
)

// GameEvent is emitted once per applied or failed settlement.
type GameEvent struct {
	Type      EventType      `json:"type"`
	GameID    string         `json:"game_id"`
	UserID    int64          `json:"user_id"`
	Step      Step           `json:"step"`
	Handle    string         `json:"handle"`
	State     string         `json:"state"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}
