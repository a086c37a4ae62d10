package services

import "casino-backend/internal/models"

type Broadcaster interface {
	BroadcastGameEvent(event *models.GameEvent)
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastGameEvent(*models.GameEvent) {}
