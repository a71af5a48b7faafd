/*

This file contains the notification center: a single-slot, auto-expiring
message sink. The latest notification overwrites any prior one and clears
itself after the display duration unless something newer replaced it first.

*/

package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/borrowfi/borrowfi-go/internal/logger"
	"github.com/borrowfi/borrowfi-go/internal/types"
)

// DisplayDuration is how long a notification stays visible.
const DisplayDuration = 3500 * time.Millisecond

// Center holds at most one visible notification at a time.
type Center struct {
	log     zerolog.Logger
	mu      sync.Mutex
	current *types.Notification
	seq     uint64
	timer   *time.Timer
}

// NewCenter returns an empty notification center.
func NewCenter() *Center {
	return &Center{log: logger.GetForComponent("notify")}
}

// Notify publishes a message, replacing any visible notification and
// restarting the expiry clock. Fire-and-forget.
func (c *Center) Notify(message string, variant types.NotificationVariant) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	seq := c.seq
	c.current = &types.Notification{Message: message, Variant: variant}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(DisplayDuration, func() {
		c.expire(seq)
	})

	event := c.log.Info()
	if variant == types.VariantError {
		event = c.log.Warn()
	}
	event.Str("variant", string(variant)).Msg(message)
}

// Success publishes a success notification.
func (c *Center) Success(message string) {
	c.Notify(message, types.VariantSuccess)
}

// Error publishes an error notification.
func (c *Center) Error(message string) {
	c.Notify(message, types.VariantError)
}

// Current returns the visible notification, or nil when none is showing.
func (c *Center) Current() *types.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	copied := *c.current
	return &copied
}

// expire clears the notification only if nothing newer replaced it.
func (c *Center) expire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == seq {
		c.current = nil
	}
}
