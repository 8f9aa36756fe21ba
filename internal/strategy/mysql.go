package strategy

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kart-io/ragx/internal/model"
	errs "github.com/kart-io/ragx/pkg/utils/errors"
)

// datastore implements Factory over gorm.
type datastore struct {
	db *gorm.DB
}

// NewFactory creates a gorm-backed store factory.
func NewFactory(db *gorm.DB) Factory {
	return &datastore{db: db}
}

func (ds *datastore) Strategies() StrategyStore             { return &strategies{db: ds.db} }
func (ds *datastore) IngestTemplates() IngestTemplateStore  { return &ingestTemplates{db: ds.db} }
func (ds *datastore) QueryTemplates() QueryTemplateStore    { return &queryTemplates{db: ds.db} }
func (ds *datastore) Credentials() CredentialStore          { return &credentials{db: ds.db} }

func (ds *datastore) Tx(ctx context.Context, fn func(Factory) error) error {
	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&datastore{db: tx})
	})
}

func (ds *datastore) AutoMigrate() error {
	return ds.db.AutoMigrate(
		&model.Strategy{},
		&model.StrategyType{},
		&model.IngestTemplate{},
		&model.QueryTemplate{},
		&model.Credential{},
	)
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.ErrNotFound.WithCause(err)
	}
	return errs.ErrDatabase.WithCause(err)
}

type strategies struct {
	db *gorm.DB
}

func (s *strategies) Create(ctx context.Context, m *model.Strategy) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrConflict.WithCause(err)
		}
		return translate(err)
	}
	return nil
}

func (s *strategies) Update(ctx context.Context, m *model.Strategy) error {
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *strategies) Delete(ctx context.Context, strategyNo string) error {
	res := s.db.WithContext(ctx).Where("strategy_no = ?", strategyNo).Delete(&model.Strategy{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *strategies) Get(ctx context.Context, strategyNo string) (*model.Strategy, error) {
	var m model.Strategy
	if err := s.db.WithContext(ctx).Where("strategy_no = ?", strategyNo).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *strategies) GetByCode(ctx context.Context, code string) (*model.Strategy, error) {
	var m model.Strategy
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *strategies) List(ctx context.Context, typeName string) ([]*model.Strategy, error) {
	var out []*model.Strategy
	q := s.db.WithContext(ctx).Order("code")
	if typeName != "" {
		q = q.Where("type_name = ?", typeName)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

type ingestTemplates struct {
	db *gorm.DB
}

func (s *ingestTemplates) Create(ctx context.Context, t *model.IngestTemplate) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrTemplateConflict.WithCause(err)
		}
		return translate(err)
	}
	return nil
}

func (s *ingestTemplates) Update(ctx context.Context, t *model.IngestTemplate) error {
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *ingestTemplates) Delete(ctx context.Context, ingestNo string) error {
	res := s.db.WithContext(ctx).Where("ingest_no = ?", ingestNo).Delete(&model.IngestTemplate{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrTemplateNotFound
	}
	return nil
}

func (s *ingestTemplates) Get(ctx context.Context, ingestNo string) (*model.IngestTemplate, error) {
	var t model.IngestTemplate
	if err := s.db.WithContext(ctx).Where("ingest_no = ?", ingestNo).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTemplateNotFound.WithCause(err)
		}
		return nil, translate(err)
	}
	return &t, nil
}

func (s *ingestTemplates) List(ctx context.Context) ([]*model.IngestTemplate, error) {
	var out []*model.IngestTemplate
	if err := s.db.WithContext(ctx).Order("created_at").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *ingestTemplates) GetDefault(ctx context.Context) (*model.IngestTemplate, error) {
	var t model.IngestTemplate
	if err := s.db.WithContext(ctx).Where("is_default = ?", true).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTemplateNotFound.WithCause(err)
		}
		return nil, translate(err)
	}
	return &t, nil
}

func (s *ingestTemplates) ClearDefault(ctx context.Context) error {
	err := s.db.WithContext(ctx).Model(&model.IngestTemplate{}).
		Where("is_default = ?", true).Update("is_default", false).Error
	if err != nil {
		return translate(err)
	}
	return nil
}

type queryTemplates struct {
	db *gorm.DB
}

func (s *queryTemplates) Create(ctx context.Context, t *model.QueryTemplate) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrTemplateConflict.WithCause(err)
		}
		return translate(err)
	}
	return nil
}

func (s *queryTemplates) Update(ctx context.Context, t *model.QueryTemplate) error {
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *queryTemplates) Delete(ctx context.Context, queryNo string) error {
	res := s.db.WithContext(ctx).Where("query_no = ?", queryNo).Delete(&model.QueryTemplate{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrTemplateNotFound
	}
	return nil
}

func (s *queryTemplates) Get(ctx context.Context, queryNo string) (*model.QueryTemplate, error) {
	var t model.QueryTemplate
	if err := s.db.WithContext(ctx).Where("query_no = ?", queryNo).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTemplateNotFound.WithCause(err)
		}
		return nil, translate(err)
	}
	return &t, nil
}

func (s *queryTemplates) List(ctx context.Context) ([]*model.QueryTemplate, error) {
	var out []*model.QueryTemplate
	if err := s.db.WithContext(ctx).Order("created_at").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *queryTemplates) GetDefault(ctx context.Context) (*model.QueryTemplate, error) {
	var t model.QueryTemplate
	if err := s.db.WithContext(ctx).Where("is_default = ?", true).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTemplateNotFound.WithCause(err)
		}
		return nil, translate(err)
	}
	return &t, nil
}

func (s *queryTemplates) ClearDefault(ctx context.Context) error {
	err := s.db.WithContext(ctx).Model(&model.QueryTemplate{}).
		Where("is_default = ?", true).Update("is_default", false).Error
	if err != nil {
		return translate(err)
	}
	return nil
}

type credentials struct {
	db *gorm.DB
}

func (s *credentials) Get(ctx context.Context, userNo, llmNo string) (*model.Credential, error) {
	var c model.Credential
	err := s.db.WithContext(ctx).
		Where("user_no = ? AND llm_no = ?", userNo, llmNo).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrMissingCredential.WithCause(err)
		}
		return nil, translate(err)
	}
	return &c, nil
}

func (s *credentials) Put(ctx context.Context, c *model.Credential) error {
	existing := &model.Credential{}
	err := s.db.WithContext(ctx).
		Where("user_no = ? AND llm_no = ?", c.UserNo, c.LLMNo).First(existing).Error
	switch {
	case err == nil:
		c.ID = existing.ID
		return translateNil(s.db.WithContext(ctx).Save(c).Error)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return translateNil(s.db.WithContext(ctx).Create(c).Error)
	default:
		return translate(err)
	}
}

func (s *credentials) Delete(ctx context.Context, userNo, llmNo string) error {
	res := s.db.WithContext(ctx).
		Where("user_no = ? AND llm_no = ?", userNo, llmNo).Delete(&model.Credential{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func translateNil(err error) error {
	if err != nil {
		return translate(err)
	}
	return nil
}
