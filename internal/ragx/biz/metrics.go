package biz

import (
	"sync"
	"sync/atomic"
	"time"
)

// PipelineMetrics 流水线进程内指标，全部原子计数。
type PipelineMetrics struct {
	// 查询指标
	queriesTotal  uint64
	queriesErrors uint64

	// 检索指标
	retrievalsTotal  uint64
	retrievalsErrors uint64

	// LLM 调用指标
	llmCallsTotal       uint64
	llmCallsErrors      uint64
	llmTokensPrompt     uint64
	llmTokensCompletion uint64

	// 索引指标
	ingestsTotal  uint64
	ingestsErrors uint64
	chunksIndexed uint64

	startTime time.Time
}

var (
	globalMetrics *PipelineMetrics
	metricsOnce   sync.Once
)

// Metrics 返回全局指标实例。
func Metrics() *PipelineMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &PipelineMetrics{startTime: time.Now()}
	})
	return globalMetrics
}

func (m *PipelineMetrics) IncQuery()          { atomic.AddUint64(&m.queriesTotal, 1) }
func (m *PipelineMetrics) IncQueryError()     { atomic.AddUint64(&m.queriesErrors, 1) }
func (m *PipelineMetrics) IncRetrieval()      { atomic.AddUint64(&m.retrievalsTotal, 1) }
func (m *PipelineMetrics) IncRetrievalError() { atomic.AddUint64(&m.retrievalsErrors, 1) }
func (m *PipelineMetrics) IncLLMCall()        { atomic.AddUint64(&m.llmCallsTotal, 1) }
func (m *PipelineMetrics) IncLLMError()       { atomic.AddUint64(&m.llmCallsErrors, 1) }
func (m *PipelineMetrics) IncIngest()         { atomic.AddUint64(&m.ingestsTotal, 1) }
func (m *PipelineMetrics) IncIngestError()    { atomic.AddUint64(&m.ingestsErrors, 1) }

// AddTokens 累计一次生成的 token 用量。
func (m *PipelineMetrics) AddTokens(prompt, completion int) {
	if prompt > 0 {
		atomic.AddUint64(&m.llmTokensPrompt, uint64(prompt))
	}
	if completion > 0 {
		atomic.AddUint64(&m.llmTokensCompletion, uint64(completion))
	}
}

// AddChunksIndexed 累计已写入向量库的分块数。
func (m *PipelineMetrics) AddChunksIndexed(n int) {
	if n > 0 {
		atomic.AddUint64(&m.chunksIndexed, uint64(n))
	}
}

// Snapshot 导出当前计数，供 stats 接口返回。
func (m *PipelineMetrics) Snapshot() map[string]any {
	return map[string]any{
		"queries_total":         atomic.LoadUint64(&m.queriesTotal),
		"queries_errors":        atomic.LoadUint64(&m.queriesErrors),
		"retrievals_total":      atomic.LoadUint64(&m.retrievalsTotal),
		"retrievals_errors":     atomic.LoadUint64(&m.retrievalsErrors),
		"llm_calls_total":       atomic.LoadUint64(&m.llmCallsTotal),
		"llm_calls_errors":      atomic.LoadUint64(&m.llmCallsErrors),
		"llm_tokens_prompt":     atomic.LoadUint64(&m.llmTokensPrompt),
		"llm_tokens_completion": atomic.LoadUint64(&m.llmTokensCompletion),
		"ingests_total":         atomic.LoadUint64(&m.ingestsTotal),
		"ingests_errors":        atomic.LoadUint64(&m.ingestsErrors),
		"chunks_indexed":        atomic.LoadUint64(&m.chunksIndexed),
		"uptime_seconds":        int64(time.Since(m.startTime).Seconds()),
	}
}
