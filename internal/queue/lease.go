package queue

import "time"

// Lease is a time-bounded claim on a running item, renewed by Heartbeat.
type Lease struct {
	QueueID   string    `json:"queueId"`
	GrantedAt time.Time `json:"grantedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsExpired reports whether the lease no longer protects its item at now.
func IsExpired(l Lease, now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// leaseFor derives the lease of a running item from its most recent sign of
// life: the heartbeat, else the start time, else the last update.
func leaseFor(item *Item, window time.Duration) Lease {
	granted := item.UpdatedAt
	switch {
	case item.HeartbeatAt != nil:
		granted = *item.HeartbeatAt
	case item.StartedAt != nil:
		granted = *item.StartedAt
	}
	return Lease{QueueID: item.ID, GrantedAt: granted, ExpiresAt: granted.Add(window)}
}

// clampWindow applies the default and the floor to a requested window.
func (s *Store) clampWindow(window time.Duration) time.Duration {
	if window <= 0 {
		window = s.leaseWindow
	}
	if window < s.minLeaseWindow {
		window = s.minLeaseWindow
	}
	return window
}
