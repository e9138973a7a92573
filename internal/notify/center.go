// Package notify provides transient, auto-dismissing operator notices.
package notify

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/clipforge/internal/broadcast"
)

// DefaultTTL is how long a notice stays visible.
const DefaultTTL = 6 * time.Second

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one transient message.
type Notice struct {
	ID        string
	Level     Level
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Center holds active notices and broadcasts the active list on every change.
type Center struct {
	mu      sync.Mutex
	notices []Notice
	ttl     time.Duration
	now     func() time.Time
	topic   *broadcast.Topic[[]Notice]
	logger  *slog.Logger
}

// NewCenter creates a notification center. ttl <= 0 uses DefaultTTL.
func NewCenter(ttl time.Duration, logger *slog.Logger) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		ttl:    ttl,
		now:    time.Now,
		topic:  broadcast.NewTopic[[]Notice](),
		logger: logger,
	}
}

// Push adds a notice and schedules its dismissal.
func (c *Center) Push(level Level, message string) Notice {
	now := c.now()
	n := Notice{
		ID:        uuid.New().String()[:8],
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.notices = append(c.notices, n)
	active, _ := c.pruneLocked()
	c.mu.Unlock()

	c.topic.Publish(active)
	time.AfterFunc(c.ttl, c.expire)
	return n
}

// Error pushes an error notice and logs the error.
func (c *Center) Error(err error) Notice {
	c.logger.Error("operation failed", "error", err)
	return c.Push(LevelError, err.Error())
}

// Active returns notices that have not expired, oldest first.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	active, changed := c.pruneLocked()
	c.mu.Unlock()

	if changed {
		c.topic.Publish(active)
	}
	return active
}

// Dismiss removes a notice before it expires.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	idx := slices.IndexFunc(c.notices, func(n Notice) bool { return n.ID == id })
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	c.notices = slices.Delete(c.notices, idx, idx+1)
	active, _ := c.pruneLocked()
	c.mu.Unlock()

	c.topic.Publish(active)
	return true
}

// Subscribe receives the active list after every change.
func (c *Center) Subscribe() (<-chan []Notice, func()) {
	return c.topic.Subscribe()
}

func (c *Center) expire() {
	_ = c.Active()
}

// pruneLocked drops expired notices and returns a copy of the rest.
// Caller must hold mu.
func (c *Center) pruneLocked() ([]Notice, bool) {
	now := c.now()
	before := len(c.notices)
	c.notices = slices.DeleteFunc(c.notices, func(n Notice) bool {
		return !now.Before(n.ExpiresAt)
	})
	return slices.Clone(c.notices), len(c.notices) != before
}
