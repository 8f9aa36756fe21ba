package strategy

import (
	"context"

	"github.com/kart-io/ragx/internal/model"
)

// StrategyStore persists strategies.
type StrategyStore interface {
	Create(ctx context.Context, s *model.Strategy) error
	Update(ctx context.Context, s *model.Strategy) error
	Delete(ctx context.Context, strategyNo string) error
	Get(ctx context.Context, strategyNo string) (*model.Strategy, error)
	GetByCode(ctx context.Context, code string) (*model.Strategy, error)
	List(ctx context.Context, typeName string) ([]*model.Strategy, error)
}

// IngestTemplateStore persists ingest templates.
type IngestTemplateStore interface {
	Create(ctx context.Context, t *model.IngestTemplate) error
	Update(ctx context.Context, t *model.IngestTemplate) error
	Delete(ctx context.Context, ingestNo string) error
	Get(ctx context.Context, ingestNo string) (*model.IngestTemplate, error)
	List(ctx context.Context) ([]*model.IngestTemplate, error)
	GetDefault(ctx context.Context) (*model.IngestTemplate, error)
	ClearDefault(ctx context.Context) error
}

// QueryTemplateStore persists query templates.
type QueryTemplateStore interface {
	Create(ctx context.Context, t *model.QueryTemplate) error
	Update(ctx context.Context, t *model.QueryTemplate) error
	Delete(ctx context.Context, queryNo string) error
	Get(ctx context.Context, queryNo string) (*model.QueryTemplate, error)
	List(ctx context.Context) ([]*model.QueryTemplate, error)
	GetDefault(ctx context.Context) (*model.QueryTemplate, error)
	ClearDefault(ctx context.Context) error
}

// CredentialStore persists per-(user, generation strategy) API keys.
type CredentialStore interface {
	Get(ctx context.Context, userNo, llmNo string) (*model.Credential, error)
	Put(ctx context.Context, c *model.Credential) error
	Delete(ctx context.Context, userNo, llmNo string) error
}

// Factory hands out the stores and runs multi-store transactions.
type Factory interface {
	Strategies() StrategyStore
	IngestTemplates() IngestTemplateStore
	QueryTemplates() QueryTemplateStore
	Credentials() CredentialStore

	// Tx runs fn against a factory bound to one transaction. Any error
	// rolls the transaction back.
	Tx(ctx context.Context, fn func(Factory) error) error

	AutoMigrate() error
}
