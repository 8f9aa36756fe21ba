package biz

import (
	"strings"

	"github.com/kart-io/ragx/internal/model"
)

// DefaultSystemPrompt 默认系统提示词：仅依据提供的文档作答，
// 文档不足以回答时明确拒答。
const DefaultSystemPrompt = `You are a helpful assistant that answers questions strictly based on the provided documents.

Documents:
{{docs}}

Rules:
1. Answer only from the documents above.
2. If the documents do not contain enough information, say so and decline to guess.
3. Answer in the same language as the question.`

// DefaultUserPrompt 默认用户提示词。
const DefaultUserPrompt = `{{query}}`

// PromptAssembler 将查询与检索文档填入提示词模板。
// 模板支持 {{query}} 与 {{docs}} 两个占位符。
type PromptAssembler struct {
	systemTemplate string
	userTemplate   string
}

// NewPromptAssembler 创建提示词组装器，空模板使用默认值。
func NewPromptAssembler(systemTemplate, userTemplate string) *PromptAssembler {
	if systemTemplate == "" {
		systemTemplate = DefaultSystemPrompt
	}
	if userTemplate == "" {
		userTemplate = DefaultUserPrompt
	}
	return &PromptAssembler{systemTemplate: systemTemplate, userTemplate: userTemplate}
}

// Assemble 渲染系统与用户提示词。文档按排名顺序以空行连接。
func (a *PromptAssembler) Assemble(query string, hits []model.RetrievedChunk) (system, user string) {
	docs := renderDocs(hits)
	system = substitute(a.systemTemplate, query, docs)
	user = substitute(a.userTemplate, query, docs)
	return system, user
}

func substitute(template, query, docs string) string {
	out := strings.ReplaceAll(template, "{{query}}", query)
	return strings.ReplaceAll(out, "{{docs}}", docs)
}

func renderDocs(hits []model.RetrievedChunk) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Text)
	}
	return strings.Join(parts, "\n\n")
}
