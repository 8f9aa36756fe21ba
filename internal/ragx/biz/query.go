package biz

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragx/internal/events"
	"github.com/kart-io/ragx/internal/memory"
	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/errors"
	"github.com/kart-io/ragx/pkg/utils/id"
)

// 查询状态机状态。任一状态都可转入 FAILED。
const (
	StateInit      = "INIT"
	StateTransform = "TRANSFORM"
	StateRetrieve  = "RETRIEVE"
	StateRerank    = "RERANK"
	StateGenerate  = "GENERATE"
	StatePersist   = "PERSIST"
	StateDone      = "DONE"
	StateFailed    = "FAILED"
)

// NoDocumentsAnswer 检索为空且 required=true 时的短路回答。
const NoDocumentsAnswer = "I couldn't find any relevant information in the knowledge base to answer this question."

// QueryPipeline 组合改写、检索、重排、提示词与生成，执行一次问答。
type QueryPipeline struct {
	transformer Transformer
	retriever   *Retriever
	reranker    Reranker
	prompt      *PromptAssembler
	generator   *Generator
	session     *memory.Session
	emitter     *events.Emitter

	// required 为 true 时检索为空直接短路拒答，不调用生成。
	required bool
}

// QueryPipelineConfig 查询编排器配置。
type QueryPipelineConfig struct {
	Transformer Transformer
	Retriever   *Retriever
	Reranker    Reranker
	Prompt      *PromptAssembler
	Generator   *Generator
	Session     *memory.Session
	Emitter     *events.Emitter
	Required    bool
}

// NewQueryPipeline 创建查询编排器。
func NewQueryPipeline(cfg QueryPipelineConfig) *QueryPipeline {
	return &QueryPipeline{
		transformer: cfg.Transformer,
		retriever:   cfg.Retriever,
		reranker:    cfg.Reranker,
		prompt:      cfg.Prompt,
		generator:   cfg.Generator,
		session:     cfg.Session,
		emitter:     cfg.Emitter,
		required:    cfg.Required,
	}
}

// Query 执行一次查询。sink 非 nil 时流式输出，事件直接透传给调用方。
// AI 回合仅在生成成功后持久化；取消时上游中止且不写历史。
func (p *QueryPipeline) Query(ctx context.Context, query string, sink StreamSink) (*GenerateResult, error) {
	m := Metrics()
	m.IncQuery()
	ctx = memory.WithPending(ctx)

	state := StateInit
	advance := func(next string) {
		logger.Debugw("query state", "from", state, "to", next,
			"session_no", p.session.SessionNo())
		state = next
	}

	fail := func(err error) (*GenerateResult, error) {
		m.IncQueryError()
		advance(StateFailed)
		p.emitError(ctx, query, err)
		return nil, err
	}

	p.emitter.EmitQuery(ctx, model.QueryEvent{
		UserID:    p.session.UserNo(),
		SessionID: p.session.SessionNo(),
		LLM:       p.generator.ModelName(),
		Query:     query,
	})

	// 历史加载与查询改写互不依赖，并行执行。两者都不会失败。
	advance(StateTransform)
	var (
		wg          sync.WaitGroup
		history     string
		transformed string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		history = p.session.Load(ctx)
	}()
	go func() {
		defer wg.Done()
		transformed = p.transformer.Transform(ctx, query)
	}()
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// 检索
	advance(StateRetrieve)
	m.IncRetrieval()
	hits, err := p.retriever.Retrieve(ctx, transformed)
	if err != nil {
		m.IncRetrievalError()
		return fail(err)
	}

	if len(hits) == 0 && p.required {
		return p.shortCircuit(ctx, query, sink)
	}

	// 重排
	advance(StateRerank)
	hits, err = p.reranker.Rerank(ctx, query, hits)
	if err != nil {
		return fail(err)
	}

	// 组装提示词。历史在用户消息前携带。
	references := BuildReferences(hits)
	system, user := p.prompt.Assemble(query, hits)
	if history != "" {
		user = "Previous conversation:\n" + history + "\n\n" + user
	}

	// 先落用户消息，再生成
	if _, err := p.session.AppendHuman(ctx, query); err != nil {
		return fail(err)
	}

	advance(StateGenerate)
	m.IncLLMCall()
	var result *GenerateResult
	if sink != nil {
		result, err = p.generator.GenerateStream(ctx, system, user, references, sink)
	} else {
		result, err = p.generator.Generate(ctx, system, user, references)
	}
	if err != nil {
		m.IncLLMError()
		return fail(err)
	}
	m.AddTokens(result.Usage.InputTokens, result.Usage.OutputTokens)

	// 持久化 AI 回合，沿用流式 init 分配的 message_no
	advance(StatePersist)
	payload := model.PendingAIPayload{
		References:     result.References,
		Usage:          result.Usage,
		ResponseTimeMS: result.LatencyMS,
		LLMNo:          result.LLMNo,
		Model:          result.Model,
	}
	memory.SetPending(ctx, payload)
	if err := p.session.AppendAI(ctx, result.MessageNo, result.Answer, payload); err != nil {
		return fail(err)
	}

	// 指标事件在持久化之后发出
	usage := payload.Usage
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	p.emitter.EmitMetrics(ctx, model.MetricsEvent{
		UserID:         p.session.UserNo(),
		SessionID:      p.session.SessionNo(),
		LLMNo:          payload.LLMNo,
		InputTokens:    usage.InputTokens,
		OutputTokens:   usage.OutputTokens,
		TotalTokens:    usage.TotalTokens,
		ResponseTimeMS: payload.ResponseTimeMS,
	})

	// 历史附加信息从请求上下文取出，按 message_no 关联
	extra := memory.PopPending(ctx)
	p.emitter.EmitHistoryExtra(ctx, model.HistoryExtraEvent{
		MessageNo:      result.MessageNo,
		UserID:         p.session.UserNo(),
		SessionID:      p.session.SessionNo(),
		LLMNo:          extra.LLMNo,
		Model:          extra.Model,
		Usage:          usage,
		ResponseTimeMS: extra.ResponseTimeMS,
		References:     extra.References,
	})

	advance(StateDone)
	return result, nil
}

// shortCircuit 在无检索结果时直接拒答。流式路径仍遵守
// init → update 的帧序，拒答回合照常入库。
func (p *QueryPipeline) shortCircuit(ctx context.Context, query string, sink StreamSink) (*GenerateResult, error) {
	if _, err := p.session.AppendHuman(ctx, query); err != nil {
		return nil, err
	}

	result := &GenerateResult{
		Answer: NoDocumentsAnswer,
		Model:  p.generator.ModelName(),
		LLMNo:  p.generator.LLMNo(),
	}

	result.MessageNo = id.NewUUID()
	if sink != nil {
		init := StreamEvent{
			Type:      StreamInit,
			MessageNo: result.MessageNo,
			Role:      model.RoleAI,
			CreatedAt: time.Now(),
		}
		if err := sink(init); err != nil {
			return nil, err
		}
		if err := sink(StreamEvent{Type: StreamUpdate, Delta: NoDocumentsAnswer}); err != nil {
			return nil, err
		}
	}

	err := p.session.AppendAI(ctx, result.MessageNo, result.Answer, model.PendingAIPayload{
		LLMNo: result.LLMNo,
		Model: result.Model,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *QueryPipeline) emitError(ctx context.Context, query string, err error) {
	errorType := model.ErrorTypeSystem
	ec := errors.FromError(err)
	if ec.HTTP < 500 {
		errorType = model.ErrorTypeResponse
	}
	p.emitter.EmitError(ctx, model.ErrorEvent{
		ErrorCode: ec.Reason,
		Type:      errorType,
		Message:   err.Error(),
		UserID:    p.session.UserNo(),
		SessionID: p.session.SessionNo(),
		LLMNo:     p.generator.LLMNo(),
		Query:     query,
	})
}
