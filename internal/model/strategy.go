package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/kart-io/ragx/pkg/utils/json"
)

// Strategy kind names. Each strategy belongs to exactly one kind.
const (
	TypeExtraction      = "extraction"
	TypeChunking        = "chunking"
	TypeEmbeddingDense  = "embedding-dense"
	TypeEmbeddingSparse = "embedding-sparse"
	TypeTransformation  = "transformation"
	TypeRetrieval       = "retrieval"
	TypeReranking       = "reranking"
	TypeSystemPrompting = "system-prompting"
	TypeUserPrompting   = "user-prompting"
	TypeGeneration      = "generation"
)

// ParamMap is a JSON-encoded parameter map stored in a single column. The
// map doubles as a schema: keys present here are the only keys a template
// override may touch.
type ParamMap map[string]any

// Value implements driver.Valuer.
func (m ParamMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *ParamMap) Scan(value any) error {
	if value == nil {
		*m = ParamMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported parameter column type %T", value)
	}
	if len(data) == 0 {
		*m = ParamMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Strategy is one atomic algorithm step. The code is uppercase ASCII and
// unique; the parameter map holds the allowed keys with their defaults.
type Strategy struct {
	StrategyNo  string    `json:"strategy_no" gorm:"primaryKey;type:varchar(64)"`
	Code        string    `json:"code" gorm:"type:varchar(64);uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:varchar(1024)"`
	TypeName    string    `json:"strategy_type_name" gorm:"type:varchar(64);index;not null"`
	Parameter   ParamMap  `json:"parameter" gorm:"type:json"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Strategy.
func (Strategy) TableName() string {
	return "rag_strategies"
}

// StrategyType is an admin-managed strategy kind.
type StrategyType struct {
	StrategyTypeNo string    `json:"strategy_type_no" gorm:"primaryKey;type:varchar(64)"`
	Name           string    `json:"name" gorm:"type:varchar(64);uniqueIndex;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for StrategyType.
func (StrategyType) TableName() string {
	return "rag_strategy_types"
}

// StrategyBinding is a strategy reference inside a template together with
// its effective parameter map (defaults deep-merged with overrides).
type StrategyBinding struct {
	StrategyNo string   `json:"strategy_no"`
	Code       string   `json:"code"`
	TypeName   string   `json:"strategy_type_name"`
	Parameter  ParamMap `json:"parameter"`
}

// BindingList is an ordered list of bindings stored as one JSON column.
type BindingList []StrategyBinding

// Value implements driver.Valuer.
func (l BindingList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *BindingList) Scan(value any) error {
	if value == nil {
		*l = BindingList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported binding column type %T", value)
	}
	if len(data) == 0 {
		*l = BindingList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// Binding is a single-element binding column.
type Binding StrategyBinding

// Value implements driver.Valuer.
func (b Binding) Value() (driver.Value, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (b *Binding) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*b = Binding{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported binding column type %T", value)
	}
	if len(data) == 0 {
		*b = Binding{}
		return nil
	}
	return json.Unmarshal(data, b)
}

// IngestTemplate composes the ingestion pipeline: ordered extractions, one
// chunking, one sparse embedding (code EMB_SPARSE), zero or more dense
// embeddings (code EMB_DENSE). At most one ingest template is default at
// any time.
type IngestTemplate struct {
	IngestNo        string      `json:"ingest_no" gorm:"primaryKey;type:varchar(64)"`
	Name            string      `json:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	IsDefault       bool        `json:"is_default" gorm:"index"`
	Extractions     BindingList `json:"extractions" gorm:"type:json"`
	Chunking        Binding     `json:"chunking" gorm:"type:json"`
	SparseEmbedding Binding     `json:"sparse_embedding" gorm:"type:json"`
	DenseEmbeddings BindingList `json:"dense_embeddings" gorm:"type:json"`
	CreatedAt       time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for IngestTemplate.
func (IngestTemplate) TableName() string {
	return "rag_ingest_templates"
}

// Bindings returns every strategy binding referenced by the template.
func (t *IngestTemplate) Bindings() []StrategyBinding {
	out := make([]StrategyBinding, 0, len(t.Extractions)+len(t.DenseEmbeddings)+2)
	out = append(out, t.Extractions...)
	out = append(out, StrategyBinding(t.Chunking), StrategyBinding(t.SparseEmbedding))
	out = append(out, t.DenseEmbeddings...)
	return out
}

// QueryTemplate composes the query pipeline: exactly one strategy of each
// of transformation, retrieval, reranking, system-prompting,
// user-prompting, and generation.
type QueryTemplate struct {
	QueryNo         string    `json:"query_no" gorm:"primaryKey;type:varchar(64)"`
	Name            string    `json:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	IsDefault       bool      `json:"is_default" gorm:"index"`
	Transformation  Binding   `json:"transformation" gorm:"type:json"`
	Retrieval       Binding   `json:"retrieval" gorm:"type:json"`
	Reranking       Binding   `json:"reranking" gorm:"type:json"`
	SystemPrompting Binding   `json:"system_prompting" gorm:"type:json"`
	UserPrompting   Binding   `json:"user_prompting" gorm:"type:json"`
	Generation      Binding   `json:"generation" gorm:"type:json"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for QueryTemplate.
func (QueryTemplate) TableName() string {
	return "rag_query_templates"
}

// Bindings returns every strategy binding referenced by the template.
func (t *QueryTemplate) Bindings() []StrategyBinding {
	return []StrategyBinding{
		StrategyBinding(t.Transformation),
		StrategyBinding(t.Retrieval),
		StrategyBinding(t.Reranking),
		StrategyBinding(t.SystemPrompting),
		StrategyBinding(t.UserPrompting),
		StrategyBinding(t.Generation),
	}
}

// Credential stores a per-(user, generation strategy) upstream API key.
type Credential struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserNo    string    `json:"user_no" gorm:"type:varchar(64);uniqueIndex:uk_user_llm;not null"`
	LLMNo     string    `json:"llm_no" gorm:"type:varchar(64);uniqueIndex:uk_user_llm;not null"`
	APIKey    string    `json:"-" gorm:"type:varchar(512);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Credential.
func (Credential) TableName() string {
	return "rag_credentials"
}
