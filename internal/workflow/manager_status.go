package workflow

import (
	"context"

	"modelforge/internal/logging"
	"modelforge/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	LastError  string
	LastItem   *queue.Item
	Completed  int
	Failed     int
	QueueStats map[queue.Status]int
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:   m.running,
		Completed: m.completed,
		Failed:    m.failed,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastItem != nil {
		copy := *m.lastItem
		summary.LastItem = &copy
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}

func (m *Manager) counts() (completed, failed int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.completed, m.failed
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) recordItem(ctx context.Context, queueID string, ok bool) {
	item, err := m.store.Get(ctx, queueID)
	if err != nil {
		m.logger.Debug("failed to reload finished item", logging.Error(err))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.completed++
	} else {
		m.failed++
	}
	if item != nil {
		m.lastItem = item
	}
}
