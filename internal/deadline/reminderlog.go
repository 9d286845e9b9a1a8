package deadline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReminderLog deduplicates reminder and overdue notifications across sweep
// runs. The key format is "remind:{kind}:{deadlineId}".
type ReminderLog interface {
	// Mark records that a notification for the key was sent and returns
	// true if this call was the first within the TTL window. A second Mark
	// before the TTL expires returns false and the sweep skips the send.
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// FormatReminderKey builds the standard reminder deduplication key.
func FormatReminderKey(kind, deadlineID string) string {
	return fmt.Sprintf("remind:%s:%s", kind, deadlineID)
}

// --- MemoryReminderLog ---

// MemoryReminderLog is an in-memory ReminderLog with TTL support. Suitable
// for testing and single-instance deployments.
type MemoryReminderLog struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
}

// NewMemoryReminderLog creates a new in-memory reminder log.
func NewMemoryReminderLog() *MemoryReminderLog {
	return &MemoryReminderLog{entries: make(map[string]time.Time)}
}

// Mark records a send and reports whether it was the first in the window.
func (l *MemoryReminderLog) Mark(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expiry, exists := l.entries[key]; exists && now.Before(expiry) {
		return false, nil
	}
	l.entries[key] = now.Add(ttl)
	return true, nil
}

// --- RedisReminderLog ---

// RedisReminderLog is a Redis-backed ReminderLog shared across instances.
type RedisReminderLog struct {
	client redis.Cmdable
}

// NewRedisReminderLog creates a new Redis-backed reminder log.
func NewRedisReminderLog(client redis.Cmdable) *RedisReminderLog {
	return &RedisReminderLog{client: client}
}

// Mark records a send via SETNX and reports whether the key was fresh.
func (l *RedisReminderLog) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	fresh, err := l.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", key, err)
	}
	return fresh, nil
}
