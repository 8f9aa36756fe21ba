package chunk

import (
	"strings"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/tokenizer"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// FixedOptions configures the fixed-window chunker.
type FixedOptions struct {
	MaxTokens int
	Overlap   int
	ModelName string
}

// FixedOptionsFromParams reads chunker options from an effective strategy
// parameter map.
func FixedOptionsFromParams(p model.ParamMap) FixedOptions {
	return FixedOptions{
		MaxTokens: intParam(p, "max_tokens", 400),
		Overlap:   intParam(p, "overlap", 80),
		ModelName: stringParam(p, "model_name", "multilingual-e5-large"),
	}
}

// FixedChunker slides a token window of MaxTokens with stride
// MaxTokens-Overlap over each page. The last Overlap tokens of a page are
// carried into the next page so chunks stay continuous across page breaks.
type FixedChunker struct {
	opts FixedOptions
	tok  tokenizer.Tokenizer
}

// NewFixed creates a fixed-window chunker. Overlap must satisfy
// 0 <= overlap < max_tokens.
func NewFixed(opts FixedOptions) (*FixedChunker, error) {
	if opts.MaxTokens <= 0 {
		return nil, errors.ErrValidation.WithMessage("max_tokens must be positive")
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.MaxTokens {
		return nil, errors.ErrValidation.WithMessagef(
			"overlap %d must be in [0, max_tokens)", opts.Overlap)
	}
	return &FixedChunker{
		opts: opts,
		tok:  tokenizer.Default().Get(opts.ModelName),
	}, nil
}

// carry is the tail of the previous page prepended to the next page's
// token stream.
type carry struct {
	source string // previous page text the tokens index into
	tokens []tokenizer.Token
}

// Chunk splits the pages into chunks with a per-document incrementing
// chunk_id.
func (c *FixedChunker) Chunk(pages []Page) ([]model.Chunk, error) {
	var (
		out     []model.Chunk
		chunkID int
		prev    carry
	)

	for _, page := range pages {
		tokens := c.tok.Tokenize(page.Text)
		if len(tokens) == 0 {
			continue
		}

		carryLen := len(prev.tokens)
		total := carryLen + len(tokens)
		stride := c.opts.MaxTokens - c.opts.Overlap

		for start := 0; start < total; start += stride {
			end := start + c.opts.MaxTokens
			if end > total {
				end = total
			}
			// a window entirely inside the carried overlap repeats the
			// previous page's tail
			if end <= carryLen {
				continue
			}

			text := window(page.Text, tokens, prev, start, end)
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunkID++
			out = append(out, model.Chunk{
				Page:    page.PageNo,
				ChunkID: chunkID,
				Text:    text,
			})
			if end == total {
				break
			}
		}

		prev = c.pageTail(page.Text, tokens)
	}

	return out, nil
}

// window decodes the token span [start, end) of the carry+page stream.
func window(pageText string, tokens []tokenizer.Token, prev carry, start, end int) string {
	carryLen := len(prev.tokens)
	pageEnd := end - carryLen
	pagePart := pageText[tokens[0].Start:tokens[pageEnd-1].End]

	if start >= carryLen {
		i := start - carryLen
		return pageText[tokens[i].Start:tokens[pageEnd-1].End]
	}

	carryPart := prev.source[prev.tokens[start].Start:prev.tokens[carryLen-1].End]
	return carryPart + "\n" + pagePart
}

// pageTail captures the page's last Overlap tokens for the next page.
func (c *FixedChunker) pageTail(pageText string, tokens []tokenizer.Token) carry {
	if c.opts.Overlap == 0 || len(tokens) == 0 {
		return carry{}
	}
	n := c.opts.Overlap
	if n > len(tokens) {
		n = len(tokens)
	}
	return carry{source: pageText, tokens: tokens[len(tokens)-n:]}
}
