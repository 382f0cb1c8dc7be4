package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
	assert.Equal(t, 1, id2.Compare(id1), "ids from one generator must be increasing")
}

func TestGenerateString(t *testing.T) {
	assert.Len(t, NewGenerator().GenerateString(), 26)
}

func TestTypedIDs(t *testing.T) {
	tests := []struct {
		prefix string
		id     string
	}{
		{ProjectPrefix, NewProjectID().String()},
		{RenderPrefix, NewRenderID().String()},
		{DeploymentPrefix, NewDeploymentID().String()},
		{ClientPrefix, NewClientID().String()},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.id, tt.prefix+"_"))
			assert.True(t, IsValid(tt.id))
			assert.True(t, IsValid(strings.TrimPrefix(tt.id, tt.prefix+"_")))
		})
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewRenderID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("rnd_not-a-ulid")
	assert.Error(t, err)
	assert.False(t, IsValid(""))
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	const workers, per = 8, 200

	var mu sync.Mutex
	seen := make(map[string]bool, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := gen.GenerateString()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*per)
}
