package collector

import (
	"context"
	"time"
)

// StoredEvent is one expanded view event as the collector persists it.
type StoredEvent struct {
	ViewID     string
	ViewerID   string
	EnvKey     string
	Type       string
	ViewerTime int64
	ReceivedAt time.Time
	Fields     map[string]any
}

type Storage interface {
	SaveEvents(ctx context.Context, events []StoredEvent) error
	ViewEvents(ctx context.Context, viewID string) ([]StoredEvent, error)
	HealthCheck() error
}

func NewStorage(postgresURI string) (Storage, error) {
	if postgresURI != "" {
		return NewPgStorage(postgresURI)
	}
	return NewMemStorage(), nil
}
