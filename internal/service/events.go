package service

import "github.com/pbtracker/pbtracker-server/internal/sse"

// EventEmitter publishes events to connected clients. *sse.Manager
// implements it.
type EventEmitter interface {
	Emit(event sse.Event)
}

type discardEmitter struct{}

func (discardEmitter) Emit(sse.Event) {}
