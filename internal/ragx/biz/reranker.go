package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/internal/pkg/rag/textutil"
	"github.com/kart-io/ragx/pkg/llm"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

const defaultRerankTopK = 5

// Reranker 对检索结果重排序并截断。
type Reranker interface {
	Rerank(ctx context.Context, query string, hits []model.RetrievedChunk) ([]model.RetrievedChunk, error)
}

// NewReranker 根据策略绑定创建重排序器。
func NewReranker(binding model.StrategyBinding, chat llm.ChatProvider) (Reranker, error) {
	topK := defaultRerankTopK
	if v, ok := binding.Parameter["top_k"]; ok {
		switch n := v.(type) {
		case int:
			topK = n
		case int64:
			topK = int(n)
		case float64:
			topK = int(n)
		}
	}
	if topK <= 0 {
		topK = defaultRerankTopK
	}

	switch binding.Code {
	case "RRK_NONE":
		return &noneReranker{topK: topK}, nil
	case "RRK_CROSS":
		return &crossReranker{chat: chat, topK: topK}, nil
	default:
		return nil, errors.ErrInvalidStrategy.WithMessagef("unknown reranker code %q", binding.Code)
	}
}

// noneReranker 只按检索分截断。
type noneReranker struct {
	topK int
}

func (r *noneReranker) Rerank(_ context.Context, _ string, hits []model.RetrievedChunk) ([]model.RetrievedChunk, error) {
	if len(hits) > r.topK {
		hits = hits[:r.topK]
	}
	return hits, nil
}

// crossReranker 用 LLM 对每个 (查询, 文本) 做逐点相关性评分，
// 与检索分加权混合后降序截断。评分失败的条目保留原分。
type crossReranker struct {
	chat llm.ChatProvider
	topK int
}

func (r *crossReranker) Rerank(ctx context.Context, query string, hits []model.RetrievedChunk) ([]model.RetrievedChunk, error) {
	if len(hits) == 0 {
		return hits, nil
	}

	reranked := make([]model.RetrievedChunk, len(hits))
	copy(reranked, hits)

	for i := range reranked {
		score, err := r.scoreRelevance(ctx, query, reranked[i].Text)
		if err != nil {
			logger.Warnw("relevance scoring failed, keeping retrieval score",
				"chunk_key", reranked[i].ChunkKey(), "error", err.Error())
			continue
		}
		// 检索分 30% + LLM 相关性 70%
		reranked[i].Score = 0.3*reranked[i].Score + 0.7*score
	}

	sort.Slice(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })
	if len(reranked) > r.topK {
		reranked = reranked[:r.topK]
	}
	return reranked, nil
}

func (r *crossReranker) scoreRelevance(ctx context.Context, query, document string) (float64, error) {
	truncated := textutil.TruncateString(document, 2000)

	prompt := fmt.Sprintf(`评估以下文档与查询的相关性。

查询：%s

文档：%s

请只返回一个 0 到 1 之间的数字，表示相关性分数：
- 1.0：完全相关，直接回答了查询
- 0.7-0.9：高度相关，包含大部分所需信息
- 0.4-0.6：部分相关，包含一些相关信息
- 0.1-0.3：低相关，只有少量相关内容
- 0.0：完全不相关

相关性分数：`, query, truncated)

	resp, err := r.chat.Generate(ctx, prompt, "")
	if err != nil {
		return 0.5, err
	}
	return parseScore(resp.Content), nil
}

// parseScore 从 LLM 响应中解析 [0,1] 分数，解析失败返回中等分。
func parseScore(response string) float64 {
	response = strings.TrimSpace(response)

	var score float64
	if _, err := fmt.Sscanf(response, "%f", &score); err == nil {
		if score >= 0 && score <= 1 {
			return score
		}
	}

	for _, part := range strings.Fields(response) {
		if _, err := fmt.Sscanf(part, "%f", &score); err == nil {
			if score >= 0 && score <= 1 {
				return score
			}
		}
	}
	return 0.5
}
