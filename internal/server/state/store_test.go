package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	// Never-seen id reads as not running, never an error.
	assert.False(t, s.Get("AGV-unseen"))

	s.Set("AGV1", true)
	assert.True(t, s.Get("AGV1"))

	// Unconditional overwrite.
	s.Set("AGV1", false)
	assert.False(t, s.Get("AGV1"))

	// Independent per id.
	s.Set("AGV2", true)
	assert.False(t, s.Get("AGV1"))
	assert.True(t, s.Get("AGV2"))
}

func TestMemoryStoreConcurrent(t *testing.T) {
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(on bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Set("AGV1", on)
				_ = s.Get("AGV1")
			}
		}(i%2 == 0)
	}
	wg.Wait()
}
