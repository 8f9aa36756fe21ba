package memory

import (
	"fmt"
	"strings"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/tokenizer"
)

// 记忆策略名。
const (
	PolicySummaryBuffer = "summary_buffer"
	PolicyWindow        = "window"
	PolicyNone          = "none"
)

const (
	summaryTokenBudget = 2000
	windowSize         = 10
	summaryLineTokens  = 40
)

// Policy 将完整历史压缩为可进入提示词的文本。Render 永不失败，
// 计数异常时退化为按字符估算。
type Policy interface {
	Name() string
	Render(msgs []model.ChatMessage) string
}

// NewPolicy 按名称创建策略，未知名称回落到 summary_buffer。
func NewPolicy(name, modelName string) Policy {
	tok := tokenizer.Default().Get(modelName)
	switch name {
	case PolicyWindow:
		return &windowPolicy{size: windowSize}
	case PolicyNone:
		return nonePolicy{}
	default:
		return &summaryBufferPolicy{tok: tok, budget: summaryTokenBudget}
	}
}

// summaryBufferPolicy 保留预算内的最近消息原文，更早的消息压缩为
// 单行摘要。
type summaryBufferPolicy struct {
	tok    tokenizer.Tokenizer
	budget int
}

func (p *summaryBufferPolicy) Name() string { return PolicySummaryBuffer }

func (p *summaryBufferPolicy) Render(msgs []model.ChatMessage) string {
	if len(msgs) == 0 {
		return ""
	}

	// 从最新往回累计，预算内的消息全文保留。
	kept := len(msgs)
	used := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		n := p.tok.Count(msgs[i].Content) + 4
		if used+n > p.budget {
			break
		}
		used += n
		kept = i
	}

	var b strings.Builder
	if kept > 0 {
		b.WriteString("Earlier conversation summary:\n")
		for _, m := range msgs[:kept] {
			b.WriteString(fmt.Sprintf("- %s: %s\n", m.Role, p.truncate(m.Content, summaryLineTokens)))
		}
		b.WriteString("\n")
	}
	for _, m := range msgs[kept:] {
		b.WriteString(fmt.Sprintf("%s: %s\n", m.Role, m.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *summaryBufferPolicy) truncate(text string, maxTokens int) string {
	tokens := p.tok.Tokenize(text)
	if len(tokens) <= maxTokens {
		return text
	}
	end := tokens[maxTokens-1].End
	return text[:end] + "..."
}

// windowPolicy 只保留最近 size 条消息。
type windowPolicy struct {
	size int
}

func (p *windowPolicy) Name() string { return PolicyWindow }

func (p *windowPolicy) Render(msgs []model.ChatMessage) string {
	if len(msgs) > p.size {
		msgs = msgs[len(msgs)-p.size:]
	}
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(fmt.Sprintf("%s: %s\n", m.Role, m.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

// nonePolicy 不携带任何历史。
type nonePolicy struct{}

func (nonePolicy) Name() string                        { return PolicyNone }
func (nonePolicy) Render(_ []model.ChatMessage) string { return "" }
