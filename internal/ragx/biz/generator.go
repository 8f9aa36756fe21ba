package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/internal/strategy"
	"github.com/kart-io/ragx/pkg/llm"
	"github.com/kart-io/ragx/pkg/llm/ollama"
	"github.com/kart-io/ragx/pkg/llm/openai"
	"github.com/kart-io/ragx/pkg/utils/errors"
	"github.com/kart-io/ragx/pkg/utils/id"
)

// 流式事件类型。
const (
	StreamInit   = "init"
	StreamUpdate = "update"
	StreamError  = "error"
)

// StreamEvent 是流式生成的单个事件帧。一次生成恰好产生一个 init，
// 随后是有序的 update 增量；所有增量按序拼接等于完整答案。失败时
// 以一个 error 帧结束。
type StreamEvent struct {
	Type       string            `json:"type"`
	MessageNo  string            `json:"message_no,omitempty"`
	Role       string            `json:"role,omitempty"`
	CreatedAt  time.Time         `json:"created_at,omitempty"`
	References []model.Reference `json:"references,omitempty"`
	Delta      string            `json:"delta,omitempty"`
	ErrorCode  string            `json:"error_code,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// StreamSink 接收流式事件。返回非 nil 错误时中止生成。
type StreamSink func(ev StreamEvent) error

// GenerateResult 是一次生成的完整结果。
type GenerateResult struct {
	MessageNo  string            `json:"message_no"`
	Answer     string            `json:"answer"`
	References []model.Reference `json:"references"`
	Usage      model.TokenUsage  `json:"usage"`
	LatencyMS  int64             `json:"latency_ms"`
	Model      string            `json:"model"`
	LLMNo      string            `json:"llm_no"`
}

// Generator 负责答案生成。
type Generator struct {
	chat      llm.ChatProvider
	modelName string
	llmNo     string
}

// NewGenerator 根据生成策略绑定创建生成器。GEN_OPENAI 需要
// (用户, 策略) 对应的凭证，缺失时返回 MISSING_CREDENTIAL。
func NewGenerator(ctx context.Context, binding model.StrategyBinding, userNo string, creds strategy.CredentialStore) (*Generator, error) {
	p := binding.Parameter

	switch binding.Code {
	case "GEN_OPENAI":
		cred, err := creds.Get(ctx, userNo, binding.StrategyNo)
		if err != nil {
			return nil, err
		}
		cfg := openai.DefaultConfig()
		cfg.APIKey = cred.APIKey
		if v := stringParam(p, "base_url"); v != "" {
			cfg.BaseURL = v
		}
		if v := stringParam(p, "model"); v != "" {
			cfg.ChatModel = v
		}
		if v := floatParam(p, "temperature"); v > 0 {
			cfg.Temperature = v
		}
		if v := intParam(p, "max_tokens"); v > 0 {
			cfg.MaxTokens = v
		}
		if v := intParam(p, "timeout"); v > 0 {
			cfg.Timeout = time.Duration(v) * time.Second
		}
		if v := intParam(p, "max_retries"); v > 0 {
			cfg.MaxRetries = v
		}
		return &Generator{
			chat:      openai.NewProviderWithConfig(cfg),
			modelName: cfg.ChatModel,
			llmNo:     binding.StrategyNo,
		}, nil

	case "GEN_OLLAMA":
		cfg := ollama.DefaultConfig()
		if v := stringParam(p, "base_url"); v != "" {
			cfg.BaseURL = v
		}
		if v := stringParam(p, "model"); v != "" {
			cfg.ChatModel = v
		}
		if v := intParam(p, "timeout"); v > 0 {
			cfg.Timeout = time.Duration(v) * time.Second
		}
		if v := intParam(p, "max_retries"); v > 0 {
			cfg.MaxRetries = v
		}
		return &Generator{
			chat:      ollama.NewProviderWithConfig(cfg),
			modelName: cfg.ChatModel,
			llmNo:     binding.StrategyNo,
		}, nil

	default:
		return nil, errors.ErrInvalidStrategy.WithMessagef("unknown generator code %q", binding.Code)
	}
}

// NewGeneratorWithProvider 用已构建的供应商创建生成器。
func NewGeneratorWithProvider(chat llm.ChatProvider, modelName, llmNo string) *Generator {
	return &Generator{chat: chat, modelName: modelName, llmNo: llmNo}
}

// ModelName 返回生成所用的模型名。
func (g *Generator) ModelName() string { return g.modelName }

// LLMNo 返回生成策略编号。
func (g *Generator) LLMNo() string { return g.llmNo }

// Generate 非流式生成。延迟从请求开始计到响应返回。
func (g *Generator) Generate(ctx context.Context, system, user string, references []model.Reference) (*GenerateResult, error) {
	start := time.Now()

	resp, err := g.chat.Generate(ctx, user, system)
	if err != nil {
		return nil, errors.ErrGenerateFailed.WithCause(err)
	}

	res := &GenerateResult{
		MessageNo:  id.NewUUID(),
		Answer:     resp.Content,
		References: references,
		LatencyMS:  time.Since(start).Milliseconds(),
		Model:      g.modelName,
		LLMNo:      g.llmNo,
	}
	if resp.TokenUsage != nil {
		res.Usage = model.TokenUsage{
			InputTokens:  resp.TokenUsage.PromptTokens,
			OutputTokens: resp.TokenUsage.CompletionTokens,
			TotalTokens:  resp.TokenUsage.TotalTokens,
		}
	}
	return res, nil
}

// GenerateStream 流式生成。先发送一个 init 帧（含 message_no 与引用），
// 随后按序发送 update 增量；失败时发送 error 帧并返回错误。延迟从
// 请求开始计到最后一个 token 到达。
func (g *Generator) GenerateStream(ctx context.Context, system, user string, references []model.Reference, sink StreamSink) (*GenerateResult, error) {
	start := time.Now()
	messageNo := id.NewUUID()

	if err := sink(StreamEvent{
		Type:       StreamInit,
		MessageNo:  messageNo,
		Role:       model.RoleAI,
		CreatedAt:  time.Now(),
		References: references,
	}); err != nil {
		return nil, err
	}

	var lastToken time.Time
	emit := func(delta string) error {
		lastToken = time.Now()
		return sink(StreamEvent{Type: StreamUpdate, Delta: delta})
	}

	resp, err := g.stream(ctx, system, user, emit)
	if err != nil {
		if ctx.Err() != nil {
			// 取消由调用方发起，不再发送 error 帧
			return nil, ctx.Err()
		}
		ec := errors.FromError(errors.ErrGenerateFailed.WithCause(err))
		_ = sink(StreamEvent{Type: StreamError, ErrorCode: ec.Reason, Message: err.Error()})
		return nil, ec
	}

	if lastToken.IsZero() {
		lastToken = time.Now()
	}

	res := &GenerateResult{
		MessageNo:  messageNo,
		Answer:     resp.Content,
		References: references,
		LatencyMS:  lastToken.Sub(start).Milliseconds(),
		Model:      g.modelName,
		LLMNo:      g.llmNo,
	}
	if resp.TokenUsage != nil {
		res.Usage = model.TokenUsage{
			InputTokens:  resp.TokenUsage.PromptTokens,
			OutputTokens: resp.TokenUsage.CompletionTokens,
			TotalTokens:  resp.TokenUsage.TotalTokens,
		}
	}
	return res, nil
}

// stream 优先走流式对话接口，供应商不支持或流式产出为空时回退到
// 非流式生成并把完整内容作为单个增量发出。
func (g *Generator) stream(ctx context.Context, system, user string, emit func(string) error) (*llm.GenerateResponse, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}

	if sp, ok := g.chat.(llm.StreamingChatProvider); ok {
		resp, err := sp.ChatStream(ctx, messages, emit)
		if err != nil {
			return nil, err
		}
		if resp.Content != "" {
			return resp, nil
		}
		logger.Warnw("streaming produced empty content, falling back to generate", "model", g.modelName)
	}

	resp, err := g.chat.Generate(ctx, user, system)
	if err != nil {
		return nil, err
	}
	if resp.Content != "" {
		if err := emit(resp.Content); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// BuildReferences 将检索结果转为答案引用，序号从 1 开始。
func BuildReferences(hits []model.RetrievedChunk) []model.Reference {
	refs := make([]model.Reference, 0, len(hits))
	seen := make(map[string]bool)
	for _, h := range hits {
		if seen[h.FileNo] {
			continue
		}
		seen[h.FileNo] = true
		refs = append(refs, model.Reference{
			FileNo:  h.FileNo,
			Name:    h.FileName,
			Index:   len(refs) + 1,
			Snippet: snippet(h.Text, 200),
		})
	}
	return refs
}

func snippet(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}
