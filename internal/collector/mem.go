package collector

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// MemStorage keeps events per view in memory and drops whole views
// once their newest event ages past the retention window. Development
// backend, selected when POSTGRES_URI is unset.
type MemStorage struct {
	db   map[string][]memEvent
	lock sync.Mutex
}

type memEvent struct {
	StoredEvent
	expireAt time.Time
}

func (m memEvent) IsExpired(now time.Time) bool {
	return m.expireAt.Before(now)
}

func NewMemStorage() *MemStorage {
	s := MemStorage{
		db: map[string][]memEvent{},
	}
	go s.watcher()
	return &s
}

func (s *MemStorage) watcher() {
	for {
		s.sweep(time.Now())
		time.Sleep(time.Minute)
	}
}

// sweep drops views whose newest event has aged out.
func (s *MemStorage) sweep(now time.Time) {
	log := log.WithField("prefix", "MemStorage.sweep")
	s.lock.Lock()
	defer s.lock.Unlock()
	for viewID, events := range s.db {
		n := len(events)
		if n > 0 && events[n-1].IsExpired(now) {
			log.WithField("view_id", viewID).Debug("view expired")
			delete(s.db, viewID)
		}
	}
}

func (s *MemStorage) SaveEvents(ctx context.Context, events []StoredEvent) error {
	retention := time.Duration(Config.EventRetention) * time.Second
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, ev := range events {
		s.db[ev.ViewID] = append(s.db[ev.ViewID], memEvent{
			StoredEvent: ev,
			expireAt:    ev.ReceivedAt.Add(retention),
		})
	}
	return nil
}

func (s *MemStorage) ViewEvents(ctx context.Context, viewID string) ([]StoredEvent, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	events := s.db[viewID]
	out := make([]StoredEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.StoredEvent)
	}
	return out, nil
}

func (s *MemStorage) HealthCheck() error {
	return nil
}
