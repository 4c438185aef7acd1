package wsi

import (
	"time"

	"github.com/agentstation/wsi/pkg/broadcast"
	"github.com/agentstation/wsi/pkg/constants"
)

// Blinker is a shared three-phase blink signal: on, on, off. One instance
// exists per interval for the lifetime of the client.
type Blinker struct {
	interval time.Duration
	subject  *broadcast.Subject[bool]
}

// Interval returns the tick period.
func (b *Blinker) Interval() time.Duration {
	return b.interval
}

// Subscribe attaches a receiver of blink phases.
func (b *Blinker) Subscribe() *broadcast.Receiver[bool] {
	return b.subject.Subscribe()
}

// Blinker returns the blinker for interval, starting it on first use.
func (c *client) Blinker(interval time.Duration) *Blinker {
	if interval <= 0 {
		interval = constants.BlinkInterval
	}
	c.blinkMu.Lock()
	defer c.blinkMu.Unlock()
	if b, ok := c.blinkers[interval]; ok {
		return b
	}
	b := &Blinker{interval: interval, subject: broadcast.NewSubject[bool]()}
	c.blinkers[interval] = b
	go c.blink(b)
	return b
}

// GetBlinker returns the default 500ms blinker.
func (c *client) GetBlinker() *Blinker {
	return c.Blinker(constants.BlinkInterval)
}

func (c *client) blink(b *Blinker) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for tick := 0; ; tick++ {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := b.subject.Publish(tick%3 != 2); err != nil {
				return
			}
		}
	}
}
