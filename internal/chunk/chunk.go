// Package chunk splits extracted document text into retrieval-sized chunks.
//
// Two algorithms are provided: a fixed token window with page-tail carry
// (CHK_FIXED) and a markdown-aware block accumulator (CHK_MD). Both assign a
// per-document incrementing chunk_id and preserve page numbers.
package chunk

import (
	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// Page is one page of extracted text. Single-page formats pass exactly one
// page with PageNo 1.
type Page struct {
	PageNo int
	Text   string
}

// Chunker turns extracted pages into chunks.
type Chunker interface {
	Chunk(pages []Page) ([]model.Chunk, error)
}

// New builds a chunker from a resolved strategy binding.
func New(binding model.StrategyBinding) (Chunker, error) {
	switch binding.Code {
	case "CHK_FIXED":
		return NewFixed(FixedOptionsFromParams(binding.Parameter))
	case "CHK_MD":
		return NewMarkdown(MarkdownOptionsFromParams(binding.Parameter))
	default:
		return nil, errors.ErrInvalidStrategy.WithMessagef("unknown chunking code %q", binding.Code)
	}
}

// intParam reads an integer parameter, tolerating the float64 values JSON
// decoding produces.
func intParam(p model.ParamMap, key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return def
	}
}

func boolParam(p model.ParamMap, key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

func stringParam(p model.ParamMap, key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}
