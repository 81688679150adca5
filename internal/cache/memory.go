package cache

import (
	"context"
	"sync"

	"github.com/bilgisen/redflag-cms/internal/models"
)

// MemoryPublishLog is used when Redis is not configured. History is lost on
// restart.
type MemoryPublishLog struct {
	mu     sync.Mutex
	events []models.PublishEvent
}

func NewMemoryPublishLog() *MemoryPublishLog {
	return &MemoryPublishLog{}
}

func (m *MemoryPublishLog) Close() error {
	return nil
}

func (m *MemoryPublishLog) RecordPublish(ctx context.Context, event models.PublishEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append([]models.PublishEvent{event}, m.events...)
	if len(m.events) > HistorySize {
		m.events = m.events[:HistorySize]
	}
	return nil
}

func (m *MemoryPublishLog) LastPublish(ctx context.Context) (*models.PublishEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) == 0 {
		return nil, nil
	}
	event := m.events[0]
	return &event, nil
}

func (m *MemoryPublishLog) History(ctx context.Context, limit int) ([]models.PublishEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	return append([]models.PublishEvent{}, m.events[:limit]...), nil
}
