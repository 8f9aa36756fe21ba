package strategy

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/errors"
	"github.com/kart-io/ragx/pkg/utils/id"
)

// StrategyRef references a strategy inside a template spec together with
// the template-time parameter overrides.
type StrategyRef struct {
	StrategyNo string         `json:"strategy_no"`
	Overrides  model.ParamMap `json:"parameter,omitempty"`
}

// IngestTemplateSpec is the input for creating or updating an ingest
// template.
type IngestTemplateSpec struct {
	Name            string        `json:"name"`
	IsDefault       bool          `json:"is_default"`
	Extractions     []StrategyRef `json:"extractions"`
	Chunking        StrategyRef   `json:"chunking"`
	SparseEmbedding StrategyRef   `json:"sparse_embedding"`
	DenseEmbeddings []StrategyRef `json:"dense_embeddings,omitempty"`
}

// QueryTemplateSpec is the input for creating or updating a query template.
type QueryTemplateSpec struct {
	Name            string      `json:"name"`
	IsDefault       bool        `json:"is_default"`
	Transformation  StrategyRef `json:"transformation"`
	Retrieval       StrategyRef `json:"retrieval"`
	Reranking       StrategyRef `json:"reranking"`
	SystemPrompting StrategyRef `json:"system_prompting"`
	UserPrompting   StrategyRef `json:"user_prompting"`
	Generation      StrategyRef `json:"generation"`
}

// Composer builds templates from strategy references, resolving defaults
// and overrides into effective parameter maps.
type Composer struct {
	factory Factory
	idGen   id.Generator
}

// NewComposer creates a composer over the given store factory.
func NewComposer(factory Factory) *Composer {
	return &Composer{
		factory: factory,
		idGen:   id.NewUUIDGenerator(),
	}
}

// resolve loads a referenced strategy, checks its kind, and computes the
// effective parameter map from its defaults and the ref's overrides.
func resolve(ctx context.Context, f Factory, ref StrategyRef, wantType string, wantCodes ...string) (model.StrategyBinding, error) {
	s, err := f.Strategies().Get(ctx, ref.StrategyNo)
	if err != nil {
		if errors.IsCode(err, errors.ErrNotFound.Code) {
			return model.StrategyBinding{}, errors.ErrInvalidStrategy.WithMessagef("strategy %s not found", ref.StrategyNo)
		}
		return model.StrategyBinding{}, err
	}
	if s.TypeName != wantType {
		return model.StrategyBinding{}, errors.ErrWrongStrategyCode.WithMessagef(
			"strategy %s is %s, want %s", s.Code, s.TypeName, wantType)
	}
	if len(wantCodes) > 0 {
		match := false
		for _, c := range wantCodes {
			if s.Code == c {
				match = true
				break
			}
		}
		if !match {
			return model.StrategyBinding{}, errors.ErrWrongStrategyCode.WithMessagef(
				"strategy code %s not allowed here", s.Code)
		}
	}
	return model.StrategyBinding{
		StrategyNo: s.StrategyNo,
		Code:       s.Code,
		TypeName:   s.TypeName,
		Parameter:  mergeParams(s.Parameter, ref.Overrides),
	}, nil
}

// CreateIngestTemplate validates and stores a new ingest template.
func (c *Composer) CreateIngestTemplate(ctx context.Context, spec *IngestTemplateSpec) (*model.IngestTemplate, error) {
	if spec.Name == "" {
		return nil, errors.ErrValidation.WithMessage("template name is required")
	}
	if len(spec.Extractions) == 0 {
		return nil, errors.ErrMissingRequiredStrategy.WithMessage("at least one extraction strategy is required")
	}
	if spec.SparseEmbedding.StrategyNo == "" {
		return nil, errors.ErrMissingRequiredStrategy.WithMessage("a sparse embedding strategy is required")
	}

	t := &model.IngestTemplate{
		IngestNo:  c.idGen.Generate(),
		Name:      spec.Name,
		IsDefault: spec.IsDefault,
	}
	if err := c.fillIngest(ctx, c.factory, t, spec); err != nil {
		return nil, err
	}

	if err := c.saveIngest(ctx, t, true); err != nil {
		return nil, err
	}
	logger.Infow("ingest template created", "ingest_no", t.IngestNo, "name", t.Name, "is_default", t.IsDefault)
	return t, nil
}

// UpdateIngestTemplate replaces an ingest template, recomputing every
// effective parameter map from strategy defaults.
func (c *Composer) UpdateIngestTemplate(ctx context.Context, ingestNo string, spec *IngestTemplateSpec) (*model.IngestTemplate, error) {
	existing, err := c.factory.IngestTemplates().Get(ctx, ingestNo)
	if err != nil {
		return nil, err
	}
	if len(spec.Extractions) == 0 {
		return nil, errors.ErrMissingRequiredStrategy.WithMessage("at least one extraction strategy is required")
	}
	if spec.SparseEmbedding.StrategyNo == "" {
		return nil, errors.ErrMissingRequiredStrategy.WithMessage("a sparse embedding strategy is required")
	}

	t := &model.IngestTemplate{
		IngestNo:  existing.IngestNo,
		Name:      spec.Name,
		IsDefault: spec.IsDefault,
		CreatedAt: existing.CreatedAt,
	}
	if t.Name == "" {
		t.Name = existing.Name
	}
	if err := c.fillIngest(ctx, c.factory, t, spec); err != nil {
		return nil, err
	}
	if err := c.saveIngest(ctx, t, false); err != nil {
		return nil, err
	}
	return t, nil
}

// PatchIngestTemplate applies partial overrides: for each provided slot the
// new overrides merge over the existing effective parameter map instead of
// the strategy defaults.
func (c *Composer) PatchIngestTemplate(ctx context.Context, ingestNo string, spec *IngestTemplateSpec) (*model.IngestTemplate, error) {
	t, err := c.factory.IngestTemplates().Get(ctx, ingestNo)
	if err != nil {
		return nil, err
	}

	if spec.Name != "" {
		t.Name = spec.Name
	}
	t.IsDefault = t.IsDefault || spec.IsDefault

	patchBinding := func(b *model.Binding, ref StrategyRef) {
		if len(ref.Overrides) > 0 {
			b.Parameter = mergeParams(b.Parameter, ref.Overrides)
		}
	}
	patchBinding(&t.Chunking, spec.Chunking)
	patchBinding(&t.SparseEmbedding, spec.SparseEmbedding)
	for i := range spec.Extractions {
		if i < len(t.Extractions) && len(spec.Extractions[i].Overrides) > 0 {
			t.Extractions[i].Parameter = mergeParams(t.Extractions[i].Parameter, spec.Extractions[i].Overrides)
		}
	}
	for i := range spec.DenseEmbeddings {
		if i < len(t.DenseEmbeddings) && len(spec.DenseEmbeddings[i].Overrides) > 0 {
			t.DenseEmbeddings[i].Parameter = mergeParams(t.DenseEmbeddings[i].Parameter, spec.DenseEmbeddings[i].Overrides)
		}
	}

	if err := c.saveIngest(ctx, t, false); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Composer) fillIngest(ctx context.Context, f Factory, t *model.IngestTemplate, spec *IngestTemplateSpec) error {
	t.Extractions = t.Extractions[:0]
	for _, ref := range spec.Extractions {
		b, err := resolve(ctx, f, ref, model.TypeExtraction)
		if err != nil {
			return err
		}
		t.Extractions = append(t.Extractions, b)
	}

	chunking, err := resolve(ctx, f, spec.Chunking, model.TypeChunking)
	if err != nil {
		return err
	}
	t.Chunking = model.Binding(chunking)

	sparse, err := resolve(ctx, f, spec.SparseEmbedding, model.TypeEmbeddingSparse, "EMB_SPARSE")
	if err != nil {
		return err
	}
	t.SparseEmbedding = model.Binding(sparse)

	t.DenseEmbeddings = t.DenseEmbeddings[:0]
	for _, ref := range spec.DenseEmbeddings {
		b, err := resolve(ctx, f, ref, model.TypeEmbeddingDense, "EMB_DENSE")
		if err != nil {
			return err
		}
		t.DenseEmbeddings = append(t.DenseEmbeddings, b)
	}
	return nil
}

// saveIngest persists the template. Writing is_default=true first clears
// the flag on every other ingest template inside the same transaction.
func (c *Composer) saveIngest(ctx context.Context, t *model.IngestTemplate, create bool) error {
	return c.factory.Tx(ctx, func(f Factory) error {
		if t.IsDefault {
			if err := f.IngestTemplates().ClearDefault(ctx); err != nil {
				return err
			}
		}
		if create {
			return f.IngestTemplates().Create(ctx, t)
		}
		return f.IngestTemplates().Update(ctx, t)
	})
}

// CreateQueryTemplate validates and stores a new query template.
func (c *Composer) CreateQueryTemplate(ctx context.Context, spec *QueryTemplateSpec) (*model.QueryTemplate, error) {
	if spec.Name == "" {
		return nil, errors.ErrValidation.WithMessage("template name is required")
	}
	t := &model.QueryTemplate{
		QueryNo:   c.idGen.Generate(),
		Name:      spec.Name,
		IsDefault: spec.IsDefault,
	}
	if err := c.fillQuery(ctx, c.factory, t, spec); err != nil {
		return nil, err
	}
	if err := c.saveQuery(ctx, t, true); err != nil {
		return nil, err
	}
	logger.Infow("query template created", "query_no", t.QueryNo, "name", t.Name, "is_default", t.IsDefault)
	return t, nil
}

// UpdateQueryTemplate replaces a query template, recomputing effective
// parameters from strategy defaults.
func (c *Composer) UpdateQueryTemplate(ctx context.Context, queryNo string, spec *QueryTemplateSpec) (*model.QueryTemplate, error) {
	existing, err := c.factory.QueryTemplates().Get(ctx, queryNo)
	if err != nil {
		return nil, err
	}
	t := &model.QueryTemplate{
		QueryNo:   existing.QueryNo,
		Name:      spec.Name,
		IsDefault: spec.IsDefault,
		CreatedAt: existing.CreatedAt,
	}
	if t.Name == "" {
		t.Name = existing.Name
	}
	if err := c.fillQuery(ctx, c.factory, t, spec); err != nil {
		return nil, err
	}
	if err := c.saveQuery(ctx, t, false); err != nil {
		return nil, err
	}
	return t, nil
}

// PatchQueryTemplate merges per-slot overrides over the existing effective
// parameter maps.
func (c *Composer) PatchQueryTemplate(ctx context.Context, queryNo string, spec *QueryTemplateSpec) (*model.QueryTemplate, error) {
	t, err := c.factory.QueryTemplates().Get(ctx, queryNo)
	if err != nil {
		return nil, err
	}
	if spec.Name != "" {
		t.Name = spec.Name
	}
	t.IsDefault = t.IsDefault || spec.IsDefault

	patch := func(b *model.Binding, ref StrategyRef) {
		if len(ref.Overrides) > 0 {
			b.Parameter = mergeParams(b.Parameter, ref.Overrides)
		}
	}
	patch(&t.Transformation, spec.Transformation)
	patch(&t.Retrieval, spec.Retrieval)
	patch(&t.Reranking, spec.Reranking)
	patch(&t.SystemPrompting, spec.SystemPrompting)
	patch(&t.UserPrompting, spec.UserPrompting)
	patch(&t.Generation, spec.Generation)

	if err := c.saveQuery(ctx, t, false); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Composer) fillQuery(ctx context.Context, f Factory, t *model.QueryTemplate, spec *QueryTemplateSpec) error {
	slots := []struct {
		dst      *model.Binding
		ref      StrategyRef
		wantType string
	}{
		{&t.Transformation, spec.Transformation, model.TypeTransformation},
		{&t.Retrieval, spec.Retrieval, model.TypeRetrieval},
		{&t.Reranking, spec.Reranking, model.TypeReranking},
		{&t.SystemPrompting, spec.SystemPrompting, model.TypeSystemPrompting},
		{&t.UserPrompting, spec.UserPrompting, model.TypeUserPrompting},
		{&t.Generation, spec.Generation, model.TypeGeneration},
	}
	for _, slot := range slots {
		if slot.ref.StrategyNo == "" {
			return errors.ErrMissingRequiredStrategy.WithMessagef("%s strategy is required", slot.wantType)
		}
		b, err := resolve(ctx, f, slot.ref, slot.wantType)
		if err != nil {
			return err
		}
		*slot.dst = model.Binding(b)
	}
	return nil
}

func (c *Composer) saveQuery(ctx context.Context, t *model.QueryTemplate, create bool) error {
	return c.factory.Tx(ctx, func(f Factory) error {
		if t.IsDefault {
			if err := f.QueryTemplates().ClearDefault(ctx); err != nil {
				return err
			}
		}
		if create {
			return f.QueryTemplates().Create(ctx, t)
		}
		return f.QueryTemplates().Update(ctx, t)
	})
}

// GetIngestTemplate resolves an ingest template by number, or the default
// when no number is given.
func (c *Composer) GetIngestTemplate(ctx context.Context, ingestNo string) (*model.IngestTemplate, error) {
	if ingestNo == "" {
		return c.factory.IngestTemplates().GetDefault(ctx)
	}
	return c.factory.IngestTemplates().Get(ctx, ingestNo)
}

// GetQueryTemplate resolves a query template by number, or the default when
// no number is given.
func (c *Composer) GetQueryTemplate(ctx context.Context, queryNo string) (*model.QueryTemplate, error) {
	if queryNo == "" {
		return c.factory.QueryTemplates().GetDefault(ctx)
	}
	return c.factory.QueryTemplates().Get(ctx, queryNo)
}

// ListIngestTemplates lists ingest templates.
func (c *Composer) ListIngestTemplates(ctx context.Context) ([]*model.IngestTemplate, error) {
	return c.factory.IngestTemplates().List(ctx)
}

// ListQueryTemplates lists query templates.
func (c *Composer) ListQueryTemplates(ctx context.Context) ([]*model.QueryTemplate, error) {
	return c.factory.QueryTemplates().List(ctx)
}

// DeleteIngestTemplate removes an ingest template.
func (c *Composer) DeleteIngestTemplate(ctx context.Context, ingestNo string) error {
	return c.factory.IngestTemplates().Delete(ctx, ingestNo)
}

// DeleteQueryTemplate removes a query template.
func (c *Composer) DeleteQueryTemplate(ctx context.Context, queryNo string) error {
	return c.factory.QueryTemplates().Delete(ctx, queryNo)
}
