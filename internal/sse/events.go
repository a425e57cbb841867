// Package sse implements Server-Sent Events for live leaderboard updates.
package sse

import (
	"time"

	"github.com/pbtracker/pbtracker-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventRunCreated is sent after a new run is stored.
	EventRunCreated EventType = "run.created"
	// EventRunUpdated is sent after an existing run is edited.
	EventRunUpdated EventType = "run.updated"
	// EventRecordSet is sent when a run becomes a category's best known time.
	EventRecordSet EventType = "record.set"
	// EventGameCreated is sent when a submission adds a game to the catalog.
	EventGameCreated EventType = "catalog.game_created"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// GameCode limits delivery to clients watching that game. Empty means
	// every client.
	GameCode string `json:"-"`
}

// RunEventData is the payload of run.created and run.updated.
type RunEventData struct {
	Run *domain.Run `json:"run"`
}

// RecordEventData is the payload of record.set.
type RecordEventData struct {
	GameCode        string `json:"game_code"`
	CategoryCode    string `json:"category_code"`
	Game            string `json:"game"`
	Category        string `json:"category"`
	Runner          string `json:"runner"`
	RunID           string `json:"run_id"`
	Seconds         int    `json:"seconds"`
	PreviousSeconds *int   `json:"previous_seconds,omitempty"`
}

// GameCreatedEventData is the payload of catalog.game_created.
type GameCreatedEventData struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewRunCreatedEvent creates a run.created event.
func NewRunCreatedEvent(run *domain.Run) Event {
	return Event{
		Type:      EventRunCreated,
		Data:      RunEventData{Run: run},
		GameCode:  run.GameCode,
		Timestamp: time.Now(),
	}
}

// NewRunUpdatedEvent creates a run.updated event.
func NewRunUpdatedEvent(run *domain.Run) Event {
	return Event{
		Type:      EventRunUpdated,
		Data:      RunEventData{Run: run},
		GameCode:  run.GameCode,
		Timestamp: time.Now(),
	}
}

// NewRecordSetEvent creates a record.set event for run. previous is the
// record it replaced, nil for a category's first record.
func NewRecordSetEvent(run *domain.Run, previous *int) Event {
	return Event{
		Type: EventRecordSet,
		Data: RecordEventData{
			GameCode:        run.GameCode,
			CategoryCode:    run.CategoryCode,
			Game:            run.Game,
			Category:        run.Category,
			Runner:          run.Username,
			RunID:           run.ID,
			Seconds:         run.Seconds,
			PreviousSeconds: previous,
		},
		GameCode:  run.GameCode,
		Timestamp: time.Now(),
	}
}

// NewGameCreatedEvent creates a catalog.game_created event.
func NewGameCreatedEvent(code, name string) Event {
	return Event{
		Type:      EventGameCreated,
		Data:      GameCreatedEventData{Code: code, Name: name},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
