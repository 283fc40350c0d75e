// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Bounded output capture with line mirroring

package exec

import (
	"bytes"
	"sync"

	"go.uber.org/zap"
)

// capture is an io.Writer that keeps at most limit bytes and mirrors
// complete lines to the debug log
type capture struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
	pending   []byte
	log       *zap.Logger
	stream    string
}

func newCapture(limit int, log *zap.Logger, stream string) *capture {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	return &capture{limit: limit, log: log, stream: stream}
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
			c.truncated = true
		} else {
			c.buf.Write(p)
		}
	} else if len(p) > 0 {
		c.truncated = true
	}

	c.mirror(p)
	return len(p), nil
}

// mirror logs each complete line
func (c *capture) mirror(p []byte) {
	if c.log == nil || !c.log.Core().Enabled(zap.DebugLevel) {
		return
	}
	c.pending = append(c.pending, p...)
	for {
		i := bytes.IndexByte(c.pending, '\n')
		if i < 0 {
			break
		}
		c.log.Debug(string(c.pending[:i]), zap.String("stream", c.stream))
		c.pending = c.pending[i+1:]
	}
	// Avoid unbounded growth on output without newlines
	if len(c.pending) > 4096 {
		c.log.Debug(string(c.pending), zap.String("stream", c.stream))
		c.pending = c.pending[:0]
	}
}

func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.buf.String()
	if c.truncated {
		s += "\n... (truncated)"
	}
	return s
}
