package biz

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSingleton(t *testing.T) {
	assert.Same(t, Metrics(), Metrics())
}

func TestMetricsConcurrentCounting(t *testing.T) {
	m := &PipelineMetrics{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncQuery()
			m.AddTokens(10, 5)
			m.AddChunksIndexed(2)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, uint64(50), snap["queries_total"])
	assert.Equal(t, uint64(500), snap["llm_tokens_prompt"])
	assert.Equal(t, uint64(250), snap["llm_tokens_completion"])
	assert.Equal(t, uint64(100), snap["chunks_indexed"])
}

func TestMetricsIgnoresNonPositive(t *testing.T) {
	m := &PipelineMetrics{}
	m.AddTokens(-1, 0)
	m.AddChunksIndexed(0)

	snap := m.Snapshot()
	require.Equal(t, uint64(0), snap["llm_tokens_prompt"])
	require.Equal(t, uint64(0), snap["chunks_indexed"])
}
