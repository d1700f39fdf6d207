package executor

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitedBuffer(t *testing.T) {
	tests := []struct {
		name          string
		max           int
		writes        []string
		want          string
		wantTruncated bool
	}{
		{"under limit", 10, []string{"abc", "def"}, "abcdef", false},
		{"exactly at limit", 6, []string{"abc", "def"}, "abcdef", false},
		{"split write", 4, []string{"abc", "def"}, "abcd", true},
		{"full then more", 3, []string{"abc", "d"}, "abc", true},
		{"empty write after full", 3, []string{"abc", ""}, "abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewLimitedBuffer(tt.max)
			for _, w := range tt.writes {
				n, err := b.Write([]byte(w))
				assert.NoError(t, err)
				assert.Equal(t, len(w), n)
			}
			assert.Equal(t, tt.want, b.String())
			assert.Equal(t, tt.wantTruncated, b.Truncated())
		})
	}
}

func TestLimitedBuffer_DefaultMax(t *testing.T) {
	b := NewLimitedBuffer(0)
	_, _ = b.Write([]byte(strings.Repeat("x", DefaultMaxOutput+1)))

	assert.Len(t, b.String(), DefaultMaxOutput)
	assert.True(t, b.Truncated())
}

func TestLimitedBuffer_ConcurrentWrites(t *testing.T) {
	b := NewLimitedBuffer(1000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Write([]byte(strings.Repeat("y", 100)))
		}()
	}
	wg.Wait()

	assert.Len(t, b.String(), 1000)
	assert.True(t, b.Truncated())
}
