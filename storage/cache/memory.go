package cache

import (
	"context"
	"sync"
	"time"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/student"
)

type entry struct {
	studentID string
	expiresAt time.Time
}

// Memory is a process-local student.Cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

var _ student.Cache = (*Memory)(nil) // interface compliance check

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

func (c *Memory) Get(_ context.Context, uid string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[uid]
	c.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if !core.NowFunc().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[uid]; ok && cur == e {
			delete(c.entries, uid)
		}
		c.mu.Unlock()
		return "", false, nil
	}
	return e.studentID, true, nil
}

func (c *Memory) Set(_ context.Context, uid, studentID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uid] = entry{studentID: studentID, expiresAt: core.NowFunc().Add(ttl)}
	return nil
}

func (c *Memory) Delete(_ context.Context, uid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uid)
	return nil
}

// Len counts entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
