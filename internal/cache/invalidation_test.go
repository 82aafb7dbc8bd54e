package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalBumpAdvancesToken(t *testing.T) {
	s := NewSignal()
	require.Equal(t, uint64(0), s.Token())

	s.Bump()
	assert.Equal(t, uint64(1), s.Token())

	s.Bump()
	s.Bump()
	assert.Equal(t, uint64(3), s.Token())
}

func TestSignalConcurrentBumps(t *testing.T) {
	s := NewSignal()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Bump()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(5000), s.Token())
}
