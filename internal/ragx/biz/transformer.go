package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/llm"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// Transformer 在检索前改写查询。实现必须返回非空结果，
// 改写失败时回退到原始查询。
type Transformer interface {
	Transform(ctx context.Context, query string) string
}

// NewTransformer 根据策略绑定创建查询改写器。
func NewTransformer(binding model.StrategyBinding, chat llm.ChatProvider) (Transformer, error) {
	switch binding.Code {
	case "TRF_NONE":
		return noneTransformer{}, nil
	case "TRF_HYDE":
		return &hydeTransformer{chat: chat}, nil
	default:
		return nil, errors.ErrInvalidStrategy.WithMessagef("unknown transformer code %q", binding.Code)
	}
}

// noneTransformer 原样返回查询。
type noneTransformer struct{}

func (noneTransformer) Transform(_ context.Context, query string) string { return query }

// hydeTransformer 通过 LLM 生成假设文档，用其文本替代原查询检索。
// HyDE 失败或产出为空时回退到原查询，绝不让改写中断问答。
type hydeTransformer struct {
	chat llm.ChatProvider
}

func (t *hydeTransformer) Transform(ctx context.Context, query string) string {
	prompt := fmt.Sprintf(`请针对以下问题，生成一段假设性的答案文档。
这段文档应该包含回答该问题所需的关键信息和技术细节。

问题：%s

假设文档：`, query)

	resp, err := t.chat.Generate(ctx, prompt, "")
	if err != nil {
		logger.Warnw("hyde generation failed, using original query", "error", err.Error())
		return query
	}

	doc := strings.TrimSpace(resp.Content)
	if doc == "" {
		logger.Warnw("hyde produced empty document, using original query")
		return query
	}
	return doc
}
