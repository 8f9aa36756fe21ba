package biz

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/internal/vector"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// 检索类型。
const (
	RetrieveSemantic = "semantic"
	RetrieveKeyword  = "keyword"
	RetrieveHybrid   = "hybrid"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// Type 检索类型：semantic、keyword 或 hybrid。
	Type string

	// TopK 返回的分块数上限，必须大于 0。
	TopK int

	// Threshold 分数硬阈值，低于等于该值的命中被丢弃。
	Threshold float64

	// Weight 混合检索中稠密分数的权重，稀疏侧权重为 1-Weight。
	Weight float64

	Collection string
	Partition  string
}

// Retriever 从向量库检索相关分块。
type Retriever struct {
	store  vector.Store
	dense  *DenseEmbedder
	sparse *SparseEmbedder
	cfg    RetrieverConfig
}

// NewRetriever 创建检索器。TopK 为 0 视为配置错误。
func NewRetriever(store vector.Store, dense *DenseEmbedder, sparse *SparseEmbedder, cfg RetrieverConfig) (*Retriever, error) {
	if cfg.TopK <= 0 {
		return nil, errors.ErrValidation.WithMessage("retriever top_k must be positive")
	}
	if cfg.Type == "" {
		cfg.Type = RetrieveSemantic
	}
	if cfg.Weight <= 0 || cfg.Weight > 1 {
		cfg.Weight = 0.5
	}
	return &Retriever{store: store, dense: dense, sparse: sparse, cfg: cfg}, nil
}

// Retrieve 执行检索。空结果不是错误。
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]model.RetrievedChunk, error) {
	switch r.cfg.Type {
	case RetrieveSemantic:
		return r.semantic(ctx, query)
	case RetrieveKeyword:
		return r.keyword(ctx, query)
	case RetrieveHybrid:
		return r.hybrid(ctx, query)
	default:
		return nil, errors.ErrValidation.WithMessagef("unknown retrieval type %q", r.cfg.Type)
	}
}

func (r *Retriever) semantic(ctx context.Context, query string) ([]model.RetrievedChunk, error) {
	vec, err := r.dense.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.store.Search(ctx, r.cfg.Collection, r.cfg.Partition, vec, r.cfg.TopK, r.cfg.Threshold)
}

func (r *Retriever) keyword(ctx context.Context, query string) ([]model.RetrievedChunk, error) {
	weights := r.sparse.Embed(query)
	if len(weights) == 0 {
		return nil, nil
	}
	return r.store.SearchSparse(ctx, r.cfg.Collection, r.cfg.Partition, weights, r.cfg.TopK, r.cfg.Threshold)
}

// hybrid 并行执行稠密与稀疏检索，加权融合后按 chunk key 去重，
// 同键保留融合分最高的一条。
func (r *Retriever) hybrid(ctx context.Context, query string) ([]model.RetrievedChunk, error) {
	var denseHits, sparseHits []model.RetrievedChunk

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.semantic(gctx, query)
		denseHits = hits
		return err
	})
	g.Go(func() error {
		hits, err := r.keyword(gctx, query)
		sparseHits = hits
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := make(map[string]model.RetrievedChunk)
	add := func(hits []model.RetrievedChunk, weight float64) {
		for _, h := range hits {
			h.Score *= weight
			h.Source = model.SourceFused
			key := h.ChunkKey()
			if prev, ok := fused[key]; ok && prev.Score >= h.Score {
				continue
			}
			fused[key] = h
		}
	}
	add(denseHits, r.cfg.Weight)
	add(sparseHits, 1-r.cfg.Weight)

	out := make([]model.RetrievedChunk, 0, len(fused))
	for _, h := range fused {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > r.cfg.TopK {
		out = out[:r.cfg.TopK]
	}
	return out, nil
}
