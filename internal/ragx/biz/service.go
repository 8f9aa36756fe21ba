package biz

import (
	"context"
	"sort"
	"strings"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/ragx/internal/events"
	"github.com/kart-io/ragx/internal/extract"
	"github.com/kart-io/ragx/internal/memory"
	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/internal/pkg/rag/evaluator"
	"github.com/kart-io/ragx/internal/strategy"
	"github.com/kart-io/ragx/internal/vector"
	"github.com/kart-io/ragx/pkg/llm"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// ServiceConfig 服务编排层的全部外部依赖。
type ServiceConfig struct {
	Factory   strategy.Factory
	Store     vector.Store
	Memory    *memory.Manager
	Emitter   *events.Emitter
	Embedder  llm.EmbeddingProvider
	Chat      llm.ChatProvider
	Evaluator *evaluator.Evaluator
	Pool      *ants.Pool
	Extract   extract.Deps

	// Collection 向量库集合名，Partition 按 user_no 划分。
	Collection string

	// EmbedDim 稠密向量维度，检索侧嵌入按此硬校验。
	EmbedDim int

	// Health 各依赖组件的探活函数，按组件名索引。
	Health map[string]func() error
}

// Service 按模板装配查询与摄取管线，并暴露策略、模板、凭证与
// 会话管理。每次请求按 (用户, 模板) 现场装配，模板变更即时生效。
type Service struct {
	cfg      ServiceConfig
	registry *strategy.Registry
	composer *strategy.Composer
}

// NewService 创建服务编排层。
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		cfg:      cfg,
		registry: strategy.NewRegistry(cfg.Factory),
		composer: strategy.NewComposer(cfg.Factory),
	}
}

// Registry 策略目录。
func (s *Service) Registry() *strategy.Registry { return s.registry }

// Composer 模板装配器。
func (s *Service) Composer() *strategy.Composer { return s.composer }

// Credentials 生成策略凭证存取。
func (s *Service) Credentials() strategy.CredentialStore { return s.cfg.Factory.Credentials() }

// Memory 会话历史管理。
func (s *Service) Memory() *memory.Manager { return s.cfg.Memory }

// QueryRequest 一次问答请求。QueryNo 为空时使用默认查询模板。
type QueryRequest struct {
	UserNo    string
	SessionNo string
	QueryNo   string
	Query     string
}

// Query 按查询模板装配管线并执行一次问答。sink 非 nil 时流式输出。
func (s *Service) Query(ctx context.Context, req *QueryRequest, sink StreamSink) (*GenerateResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.ErrValidation.WithMessage("query must not be empty")
	}
	if req.SessionNo == "" {
		return nil, errors.ErrValidation.WithMessage("session_no must not be empty")
	}

	tpl, err := s.queryTemplate(ctx, req.QueryNo)
	if err != nil {
		return nil, err
	}

	pipe, err := s.assembleQuery(ctx, tpl, req.UserNo, req.SessionNo)
	if err != nil {
		return nil, err
	}
	return pipe.Query(ctx, req.Query, sink)
}

// assembleQuery 从模板绑定装配查询管线。
func (s *Service) assembleQuery(ctx context.Context, tpl *model.QueryTemplate, userNo, sessionNo string) (*QueryPipeline, error) {
	transformer, err := NewTransformer(model.StrategyBinding(tpl.Transformation), s.cfg.Chat)
	if err != nil {
		return nil, err
	}

	rp := tpl.Retrieval.Parameter
	retriever, err := NewRetriever(s.cfg.Store,
		NewDenseEmbedder(s.cfg.Embedder, s.cfg.EmbedDim),
		NewSparseEmbedder(),
		RetrieverConfig{
			Type:       stringParam(rp, "type"),
			TopK:       intParam(rp, "top_k"),
			Threshold:  floatParam(rp, "threshold"),
			Weight:     floatParam(rp, "weight"),
			Collection: s.cfg.Collection,
			Partition:  userNo,
		})
	if err != nil {
		return nil, err
	}

	reranker, err := NewReranker(model.StrategyBinding(tpl.Reranking), s.cfg.Chat)
	if err != nil {
		return nil, err
	}

	generator, err := NewGenerator(ctx, model.StrategyBinding(tpl.Generation), userNo, s.Credentials())
	if err != nil {
		return nil, err
	}

	prompt := NewPromptAssembler(
		stringParam(tpl.SystemPrompting.Parameter, "template"),
		stringParam(tpl.UserPrompting.Parameter, "template"))

	return NewQueryPipeline(QueryPipelineConfig{
		Transformer: transformer,
		Retriever:   retriever,
		Reranker:    reranker,
		Prompt:      prompt,
		Generator:   generator,
		Session:     s.cfg.Memory.GetOrCreate(userNo, sessionNo, generator.ModelName()),
		Emitter:     s.cfg.Emitter,
		Required:    boolParam(rp, "required"),
	}), nil
}

func (s *Service) queryTemplate(ctx context.Context, queryNo string) (*model.QueryTemplate, error) {
	if queryNo != "" {
		return s.composer.GetQueryTemplate(ctx, queryNo)
	}
	return s.cfg.Factory.QueryTemplates().GetDefault(ctx)
}

// IngestRequest 一次文档摄取请求。IngestNo 为空时使用默认摄取模板。
type IngestRequest struct {
	UserNo   string
	IngestNo string
	Path     string
	FileName string
}

// Ingest 按摄取模板装配管线并摄取一份文档。progress 可为 nil。
func (s *Service) Ingest(ctx context.Context, req *IngestRequest, progress IngestProgressFunc) (*IngestResult, error) {
	if req.Path == "" || req.FileName == "" {
		return nil, errors.ErrValidation.WithMessage("file is required")
	}

	tpl, err := s.ingestTemplate(ctx, req.IngestNo)
	if err != nil {
		return nil, err
	}

	pipe, err := NewIngestPipeline(tpl, IngestDeps{
		Extract:    s.cfg.Extract,
		Store:      s.cfg.Store,
		Embedder:   s.cfg.Embedder,
		Pool:       s.cfg.Pool,
		Collection: s.cfg.Collection,
	})
	if err != nil {
		return nil, err
	}

	return pipe.Ingest(ctx, extract.Source{
		Path:     req.Path,
		FileName: req.FileName,
		UserNo:   req.UserNo,
	}, progress)
}

func (s *Service) ingestTemplate(ctx context.Context, ingestNo string) (*model.IngestTemplate, error) {
	if ingestNo != "" {
		return s.composer.GetIngestTemplate(ctx, ingestNo)
	}
	return s.cfg.Factory.IngestTemplates().GetDefault(ctx)
}

// Stats 返回管线累计指标与向量库概况。
func (s *Service) Stats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"pipeline":       Metrics().Snapshot(),
		"collection":     s.cfg.Collection,
		"embed_provider": s.cfg.Embedder.Name(),
		"chat_provider":  s.cfg.Chat.Name(),
	}
	if count, err := s.cfg.Store.Count(ctx, s.cfg.Collection); err != nil {
		logger.Warnw("failed to count vector collection", "collection", s.cfg.Collection, "error", err)
	} else {
		stats["vector_rows"] = count
	}
	return stats
}

// ComponentHealth 单个依赖组件的探活结果。
type ComponentHealth struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Health 逐个探活依赖组件。任一组件失败时整体视为不健康。
func (s *Service) Health(ctx context.Context) (bool, []ComponentHealth) {
	names := make([]string, 0, len(s.cfg.Health))
	for name := range s.cfg.Health {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	out := make([]ComponentHealth, 0, len(names))
	for _, name := range names {
		ch := ComponentHealth{Component: name, Status: "ok"}
		if err := s.cfg.Health[name](); err != nil {
			healthy = false
			ch.Status = "unavailable"
			ch.Error = err.Error()
		}
		out = append(out, ch)
	}
	return healthy, out
}

// Evaluate 对一次问答结果执行 Ragas 评估。
func (s *Service) Evaluate(ctx context.Context, input *evaluator.Input) (*evaluator.Result, error) {
	if s.cfg.Evaluator == nil {
		return nil, errors.ErrInternal.WithMessage("evaluator is not configured")
	}
	if input.Question == "" || input.Answer == "" {
		return nil, errors.ErrValidation.WithMessage("question and answer are required")
	}
	return s.cfg.Evaluator.Evaluate(ctx, input)
}
