package biz

import (
	"context"
	"sync"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/ragx/internal/chunk"
	"github.com/kart-io/ragx/internal/extract"
	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/internal/vector"
	"github.com/kart-io/ragx/pkg/llm"
	"github.com/kart-io/ragx/pkg/utils/errors"
	"github.com/kart-io/ragx/pkg/utils/id"
)

// 摄取阶段名。
const (
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageUpsert  = "upsert"
)

// embedBatchSize 每个嵌入任务处理的分块数。
const embedBatchSize = 16

// IngestProgress 摄取进度通知。Failed 为 true 时 Message 带失败原因，
// 该阶段不再继续。
type IngestProgress struct {
	Stage     string `json:"stage"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Failed    bool   `json:"failed,omitempty"`
	Message   string `json:"message,omitempty"`
}

// IngestProgressFunc 接收摄取进度。
type IngestProgressFunc func(p IngestProgress)

// IngestResult 一次摄取的结果。
type IngestResult struct {
	FileNo string `json:"file_no"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
	Bucket string `json:"bucket,omitempty"`
	Path   string `json:"path,omitempty"`
}

// IngestDeps 摄取编排器的外部依赖。
type IngestDeps struct {
	Extract    extract.Deps
	Store      vector.Store
	Embedder   llm.EmbeddingProvider
	Pool       *ants.Pool
	Collection string
}

// IngestPipeline 按模板执行 提取 → 分块 → 嵌入 → 写入 的摄取编排。
// 嵌入阶段通过协程池并行，任一阶段失败即终止，不做重试。
type IngestPipeline struct {
	tpl     *model.IngestTemplate
	deps    IngestDeps
	chunker chunk.Chunker
	dense   *DenseEmbedder
	sparse  *SparseEmbedder
}

// NewIngestPipeline 从已解析的摄取模板创建编排器。
func NewIngestPipeline(tpl *model.IngestTemplate, deps IngestDeps) (*IngestPipeline, error) {
	chunker, err := chunk.New(model.StrategyBinding(tpl.Chunking))
	if err != nil {
		return nil, err
	}

	dim := 0
	if len(tpl.DenseEmbeddings) > 0 {
		dim = intParam(tpl.DenseEmbeddings[0].Parameter, "dimension")
	}

	return &IngestPipeline{
		tpl:     tpl,
		deps:    deps,
		chunker: chunker,
		dense:   NewDenseEmbedder(deps.Embedder, dim),
		sparse:  NewSparseEmbedder(),
	}, nil
}

// Ingest 执行一次文档摄取。progress 可为 nil。
func (p *IngestPipeline) Ingest(ctx context.Context, src extract.Source, progress IngestProgressFunc) (*IngestResult, error) {
	if progress == nil {
		progress = func(IngestProgress) {}
	}
	m := Metrics()
	m.IncIngest()

	fail := func(stage string, err error) (*IngestResult, error) {
		m.IncIngestError()
		progress(IngestProgress{Stage: stage, Failed: true, Message: err.Error()})
		return nil, err
	}

	// 提取：按文件扩展名匹配模板中的提取策略
	binding, err := p.extractionFor(src.FileName)
	if err != nil {
		return fail(StageExtract, err)
	}
	driver, err := extract.New(binding, p.deps.Extract)
	if err != nil {
		return fail(StageExtract, err)
	}
	extracted, err := driver.Extract(ctx, src, func(processed, total int) {
		progress(IngestProgress{Stage: StageExtract, Processed: processed, Total: total})
	})
	if err != nil {
		return fail(StageExtract, err)
	}

	// 分块
	chunks, err := p.chunker.Chunk(extracted.Pages)
	if err != nil {
		return fail(StageChunk, err)
	}
	progress(IngestProgress{Stage: StageChunk, Processed: len(chunks), Total: len(chunks)})

	fileNo := id.NewUUID()
	res := &IngestResult{
		FileNo: fileNo,
		Pages:  len(extracted.Pages),
		Chunks: len(chunks),
		Bucket: extracted.Bucket,
		Path:   extracted.Path,
	}
	if len(chunks) == 0 {
		progress(IngestProgress{Stage: StageUpsert, Processed: 0, Total: 0})
		return res, nil
	}

	// 嵌入：按批次分发到协程池
	records, err := p.embedAll(ctx, fileNo, src.FileName, chunks, progress)
	if err != nil {
		return fail(StageEmbed, err)
	}

	// 写入向量库
	if err := p.deps.Store.EnsureCollection(ctx, p.deps.Collection, p.dense.Dim()); err != nil {
		return fail(StageUpsert, err)
	}
	if err := p.deps.Store.Upsert(ctx, p.deps.Collection, src.UserNo, records); err != nil {
		return fail(StageUpsert, err)
	}
	progress(IngestProgress{Stage: StageUpsert, Processed: len(records), Total: len(records)})

	m.AddChunksIndexed(len(records))
	logger.Infow("document ingested",
		"file_no", fileNo, "file", src.FileName, "pages", res.Pages, "chunks", res.Chunks)
	return res, nil
}

// extractionFor 返回能处理该文件的模板提取策略。
func (p *IngestPipeline) extractionFor(fileName string) (model.StrategyBinding, error) {
	code, err := extract.CodeForFile(fileName)
	if err != nil {
		return model.StrategyBinding{}, err
	}
	for _, b := range p.tpl.Extractions {
		if b.Code == code {
			return b, nil
		}
	}
	return model.StrategyBinding{}, errors.ErrUnsupportedFormat.WithMessagef("template has no extraction strategy for %s", code)
}

// embedAll 并行生成稠密与稀疏向量。批次内失败记录第一个错误并
// 使整个阶段失败。
func (p *IngestPipeline) embedAll(ctx context.Context, fileNo, fileName string, chunks []model.Chunk, progress IngestProgressFunc) ([]model.VectorRecord, error) {
	records := make([]model.VectorRecord, len(chunks))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	submit := func(start, end int) {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				setErr(ctx.Err())
				return
			}

			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = chunks[i].Text
			}
			vecs, err := p.dense.EmbedPassages(ctx, texts)
			if err != nil {
				setErr(err)
				return
			}

			for i := start; i < end; i++ {
				c := chunks[i]
				records[i] = model.VectorRecord{
					ChunkKey: model.BuildChunkKey(fileNo, c.Page, c.ChunkID),
					FileNo:   fileNo,
					FileName: fileName,
					PageNo:   c.Page,
					IndexNo:  c.ChunkID,
					Text:     c.Text,
					Dense:    vecs[i-start],
					Sparse:   p.sparse.Embed(c.Text),
				}
			}

			mu.Lock()
			done += end - start
			processed := done
			mu.Unlock()
			progress(IngestProgress{Stage: StageEmbed, Processed: processed, Total: len(chunks)})
		}

		if p.deps.Pool != nil {
			if err := p.deps.Pool.Submit(task); err != nil {
				wg.Done()
				setErr(err)
			}
		} else {
			go task()
		}
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		submit(start, end)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}
