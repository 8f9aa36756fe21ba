package vector

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/component/milvus"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// 集合字段名。CHUNK_KEY 为主键，格式 file_no:page:chunk_id。
const (
	fieldChunkKey = "CHUNK_KEY"
	fieldFileNo   = "FILE_NO"
	fieldFileName = "FILE_NAME"
	fieldPageNo   = "PAGE_NO"
	fieldIndexNo  = "INDEX_NO"
	fieldText     = "TEXT"
	fieldDense    = "embedding"
	fieldSparse   = "sparse"
)

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client *milvus.Client
}

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// EnsureCollection 创建集合（含稠密与稀疏索引），已存在时直接返回。
func (s *MilvusStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	if exists {
		return nil
	}

	schema := entity.NewSchema().
		WithName(collection).
		WithField(entity.NewField().
			WithName(fieldChunkKey).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(128).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(fieldFileNo).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64)).
		WithField(entity.NewField().
			WithName(fieldFileName).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(255)).
		WithField(entity.NewField().
			WithName(fieldPageNo).
			WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().
			WithName(fieldIndexNo).
			WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().
			WithName(fieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535)).
		WithField(entity.NewField().
			WithName(fieldDense).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dim))).
		WithField(entity.NewField().
			WithName(fieldSparse).
			WithDataType(entity.FieldTypeSparseVector))

	raw := s.client.RawClient()
	if err := raw.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(collection, schema)); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}

	// 稠密向量使用 HNSW + 余弦相似度
	denseTask, err := raw.CreateIndex(ctx, milvusclient.NewCreateIndexOption(
		collection, fieldDense, index.NewHNSWIndex(entity.COSINE, 16, 200)))
	if err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	if err := denseTask.Await(ctx); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}

	// 稀疏向量使用倒排索引 + 内积
	sparseTask, err := raw.CreateIndex(ctx, milvusclient.NewCreateIndexOption(
		collection, fieldSparse, index.NewSparseInvertedIndex(entity.IP, 0.2)))
	if err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	if err := sparseTask.Await(ctx); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}

	loadTask, err := raw.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
	if err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}

	logger.Infow("milvus collection created", "collection", collection, "dim", dim)
	return nil
}

// ensurePartition 按需创建分区。
func (s *MilvusStore) ensurePartition(ctx context.Context, collection, partition string) error {
	if partition == "" {
		return nil
	}
	raw := s.client.RawClient()
	has, err := raw.HasPartition(ctx, milvusclient.NewHasPartitionOption(collection, partition))
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	return raw.CreatePartition(ctx, milvusclient.NewCreatePartitionOption(collection, partition))
}

// Upsert 以 chunk_key 为主键幂等写入。
func (s *MilvusStore) Upsert(ctx context.Context, collection, partition string, records []model.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensurePartition(ctx, collection, partition); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}

	n := len(records)
	keys := make([]string, n)
	fileNos := make([]string, n)
	fileNames := make([]string, n)
	pageNos := make([]int64, n)
	indexNos := make([]int64, n)
	texts := make([]string, n)
	dense := make([][]float32, n)
	sparse := make([]entity.SparseEmbedding, n)

	dim := 0
	for i, r := range records {
		keys[i] = r.ChunkKey
		fileNos[i] = r.FileNo
		fileNames[i] = r.FileName
		pageNos[i] = int64(r.PageNo)
		indexNos[i] = int64(r.IndexNo)
		texts[i] = r.Text
		dense[i] = r.Dense
		if len(r.Dense) > 0 {
			dim = len(r.Dense)
		}

		emb, err := sparseEmbedding(r.Sparse)
		if err != nil {
			return errors.ErrVectorStore.WithCause(err)
		}
		sparse[i] = emb
	}

	columns := []column.Column{
		column.NewColumnVarChar(fieldChunkKey, keys),
		column.NewColumnVarChar(fieldFileNo, fileNos),
		column.NewColumnVarChar(fieldFileName, fileNames),
		column.NewColumnInt64(fieldPageNo, pageNos),
		column.NewColumnInt64(fieldIndexNo, indexNos),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnFloatVector(fieldDense, dim, dense),
		column.NewColumnSparseVectors(fieldSparse, sparse),
	}

	opt := milvusclient.NewColumnBasedInsertOption(collection, columns...)
	if partition != "" {
		opt = opt.WithPartition(partition)
	}
	if _, err := s.client.RawClient().Upsert(ctx, opt); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	return nil
}

// sparseEmbedding 将哈希词袋转为 Milvus 稀疏向量（位置升序）。
func sparseEmbedding(weights map[uint32]float32) (entity.SparseEmbedding, error) {
	positions := make([]uint32, 0, len(weights))
	for pos := range weights {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	values := make([]float32, len(positions))
	for i, pos := range positions {
		values[i] = weights[pos]
	}
	return entity.NewSliceSparseEmbedding(positions, values)
}

// Search 稠密检索，score 高于 threshold 的命中才返回。
func (s *MilvusStore) Search(ctx context.Context, collection, partition string, vec []float32, topK int, threshold float64) ([]model.RetrievedChunk, error) {
	vectors := []entity.Vector{entity.FloatVector(vec)}
	return s.search(ctx, collection, partition, fieldDense, vectors, topK, threshold, model.SourceDense)
}

// SearchSparse 稀疏检索。
func (s *MilvusStore) SearchSparse(ctx context.Context, collection, partition string, weights map[uint32]float32, topK int, threshold float64) ([]model.RetrievedChunk, error) {
	emb, err := sparseEmbedding(weights)
	if err != nil {
		return nil, errors.ErrVectorStore.WithCause(err)
	}
	vectors := []entity.Vector{emb}
	return s.search(ctx, collection, partition, fieldSparse, vectors, topK, threshold, model.SourceSparse)
}

func (s *MilvusStore) search(ctx context.Context, collection, partition, annsField string, vectors []entity.Vector, topK int, threshold float64, source string) ([]model.RetrievedChunk, error) {
	outputFields := []string{fieldFileNo, fieldFileName, fieldPageNo, fieldIndexNo, fieldText}

	buildOpt := func(withPartition bool) milvusclient.SearchOption {
		opt := milvusclient.NewSearchOption(collection, topK, vectors).
			WithANNSField(annsField).
			WithSearchParam("ef", "64").
			WithOutputFields(outputFields...)
		if withPartition && partition != "" {
			opt = opt.WithPartitions(partition)
		}
		return opt
	}

	raw := s.client.RawClient()
	results, err := raw.Search(ctx, buildOpt(true))
	if err != nil && partition != "" {
		// 部分后端不支持分区检索，退化为全集合检索
		logger.Warnw("partition search failed, falling back to collection-wide search",
			"collection", collection, "partition", partition, "error", err.Error())
		results, err = raw.Search(ctx, buildOpt(false))
	}
	if err != nil {
		return nil, errors.ErrVectorStore.WithCause(err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rs := results[0]
	out := make([]model.RetrievedChunk, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		score := float64(rs.Scores[i])
		if score <= threshold {
			continue
		}
		rc := model.RetrievedChunk{Score: score, Source: source}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				switch col.Name() {
				case fieldFileNo:
					rc.FileNo = col.Data()[i]
				case fieldFileName:
					rc.FileName = col.Data()[i]
				case fieldText:
					rc.Text = col.Data()[i]
				}
			case *column.ColumnInt64:
				switch col.Name() {
				case fieldPageNo:
					rc.Page = int(col.Data()[i])
				case fieldIndexNo:
					rc.ChunkID = int(col.Data()[i])
				}
			}
		}
		out = append(out, rc)
	}
	return out, nil
}

// Delete 按表达式删除，例如 FILE_NO == "xxx"。
func (s *MilvusStore) Delete(ctx context.Context, collection, partition, expr string) error {
	opt := milvusclient.NewDeleteOption(collection).WithExpr(expr)
	if partition != "" {
		opt = opt.WithPartition(partition)
	}
	if _, err := s.client.RawClient().Delete(ctx, opt); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	return nil
}

// Count 返回集合行数。
func (s *MilvusStore) Count(ctx context.Context, collection string) (int64, error) {
	stats, err := s.client.RawClient().GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
	if err != nil {
		return 0, errors.ErrVectorStore.WithCause(err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

// BuildFileExpr 构造按文件删除的表达式。
func BuildFileExpr(fileNo string) string {
	return fmt.Sprintf("%s == %q", fieldFileNo, fileNo)
}

var _ Store = (*MilvusStore)(nil)
