// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"sync"
	"time"
)

// ClockSink consumes samples at the real-time rate without producing sound.
// It drives headless sessions and tests.
type ClockSink struct {
	period time.Duration

	mu       sync.Mutex
	doneChan chan struct{}
	wg       sync.WaitGroup
}

var _ Sink = (*ClockSink)(nil)

// NewClockSink creates a sink that pulls audio every period. Periods <= 0
// default to 10ms.
func NewClockSink(period time.Duration) *ClockSink {
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	return &ClockSink{period: period}
}

func (c *ClockSink) Open(channels, sampleRate int, fill FillFunc) error {
	if channels <= 0 || sampleRate <= 0 {
		return errors.New("clock sink: invalid format")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doneChan != nil {
		return errors.New("clock sink: already open")
	}

	done := make(chan struct{})
	c.doneChan = done

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.period)
		defer ticker.Stop()

		var buf []int16
		var consumed int64 // frames handed out so far
		start := time.Now()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				// Pace by wall clock so ticker jitter does not drift the position.
				due := int64(now.Sub(start)) * int64(sampleRate) / int64(time.Second)
				frames := int(due - consumed)
				if frames <= 0 {
					continue
				}
				if cap(buf) < frames*channels {
					buf = make([]int16, frames*channels)
				}
				fill(buf[:frames*channels])
				consumed = due
			}
		}
	}()

	return nil
}

func (c *ClockSink) Close() error {
	c.mu.Lock()
	done := c.doneChan
	c.doneChan = nil
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	close(done)
	c.wg.Wait()
	return nil
}
