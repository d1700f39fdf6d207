package executor

import (
	"bytes"
	"sync"
)

// DefaultMaxOutput caps each captured stream.
const DefaultMaxOutput = 1 << 20

// LimitedBuffer keeps the first Max bytes written to it and silently drops
// the rest. Writes never fail, so a chatty child is not killed by EPIPE; the
// drop is reported through Truncated.
type LimitedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

// NewLimitedBuffer returns a buffer holding at most max bytes.
// A non-positive max means DefaultMaxOutput.
func NewLimitedBuffer(max int) *LimitedBuffer {
	if max <= 0 {
		max = DefaultMaxOutput
	}
	return &LimitedBuffer{max: max}
}

func (b *LimitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.max - b.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *LimitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Truncated reports whether any bytes were dropped.
func (b *LimitedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
