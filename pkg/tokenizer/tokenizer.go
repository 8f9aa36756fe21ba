// Package tokenizer provides deterministic, offset-preserving tokenization
// used for chunk sizing, prompt budgeting, and memory compaction.
//
// The tokenizer approximates subword vocabularies without shipping model
// vocabulary files: ASCII words are split into fixed-size pieces, CJK
// characters count one token each, and punctuation is one token per rune.
// Counts are stable across calls, which is what the chunkers and the
// summary buffer rely on.
package tokenizer

import (
	"unicode"
)

// Token is a single token with its byte offsets into the original text.
// Text[Start:End] always reproduces the token verbatim.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenizer converts text into tokens and counts them.
type Tokenizer interface {
	// Tokenize splits text into offset-preserving tokens.
	Tokenize(text string) []Token

	// Count returns the number of tokens in text.
	Count(text string) int

	// Model returns the model name this tokenizer was built for.
	Model() string
}

// maxPieceRunes caps an ASCII word piece. Four runes per piece tracks the
// common ~4 chars/token ratio of BPE vocabularies closely enough for
// window sizing.
const maxPieceRunes = 4

type approxTokenizer struct {
	model string
}

// New creates a tokenizer for the given model name. The model name is
// recorded for cache identity; the segmentation rules are shared.
func New(model string) Tokenizer {
	return &approxTokenizer{model: model}
}

func (t *approxTokenizer) Model() string {
	return t.model
}

func (t *approxTokenizer) Tokenize(text string) []Token {
	var tokens []Token

	byteStart := -1 // start of current word run, -1 when not in a word
	runeCount := 0

	flush := func(end int) {
		if byteStart >= 0 {
			tokens = append(tokens, Token{Text: text[byteStart:end], Start: byteStart, End: end})
			byteStart = -1
			runeCount = 0
		}
	}

	for i, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush(i)
		case isCJK(r):
			flush(i)
			end := i + len(string(r))
			tokens = append(tokens, Token{Text: text[i:end], Start: i, End: end})
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if byteStart < 0 {
				byteStart = i
			}
			runeCount++
			if runeCount == maxPieceRunes {
				flush(i + len(string(r)))
			}
		default:
			// punctuation and symbols are one token per rune
			flush(i)
			end := i + len(string(r))
			tokens = append(tokens, Token{Text: text[i:end], Start: i, End: end})
		}
	}
	flush(len(text))

	return tokens
}

func (t *approxTokenizer) Count(text string) int {
	count := 0
	inWord := false
	runeCount := 0

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if inWord {
				count++
				inWord = false
				runeCount = 0
			}
		case isCJK(r):
			if inWord {
				count++
				inWord = false
				runeCount = 0
			}
			count++
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			inWord = true
			runeCount++
			if runeCount == maxPieceRunes {
				count++
				inWord = false
				runeCount = 0
			}
		default:
			if inWord {
				count++
				inWord = false
				runeCount = 0
			}
			count++
		}
	}
	if inWord {
		count++
	}

	return count
}

// isCJK reports whether r is a CJK ideograph, kana, or hangul syllable.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
