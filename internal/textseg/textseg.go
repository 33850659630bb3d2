// Package textseg splits raw text into space-delimited word units that a
// lexical index can consume. Scripts with whitespace word boundaries pass
// through nearly unchanged; Han and Kana runs are segmented with a
// dictionary-based segmenter so multi-character words keep their term
// statistics instead of being atomized into single characters.
package textseg

import (
	"strings"
	"unicode"

	"github.com/go-ego/gse"
)

// Tokenizer performs script-aware word segmentation.
// It is safe for concurrent use after construction.
type Tokenizer struct {
	seg gse.Segmenter
}

// New creates a Tokenizer with the default segmentation dictionary loaded.
func New() (*Tokenizer, error) {
	seg, err := gse.New()
	if err != nil {
		return nil, err
	}
	return &Tokenizer{seg: seg}, nil
}

// Tokenize returns text with logical word units separated by single spaces.
// Idempotent: tokenizing already-tokenized output yields the same string.
func (t *Tokenizer) Tokenize(text string) string {
	return strings.Join(t.Words(text), " ")
}

// Words returns the individual word units of text in document order.
func (t *Tokenizer) Words(text string) []string {
	var words []string
	var run strings.Builder
	runCJK := false

	flush := func() {
		if run.Len() == 0 {
			return
		}
		s := run.String()
		run.Reset()
		if runCJK {
			words = append(words, t.cutCJK(s)...)
		} else {
			words = append(words, s)
		}
	}

	for _, r := range text {
		if unicode.IsSpace(r) {
			flush()
			continue
		}
		cjk := isCJK(r)
		if run.Len() > 0 && cjk != runCJK {
			flush()
		}
		runCJK = cjk
		run.WriteRune(r)
	}
	flush()

	return words
}

// cutCJK segments a contiguous run of CJK text into words.
func (t *Tokenizer) cutCJK(run string) []string {
	cut := t.seg.Cut(run, true)
	words := make([]string, 0, len(cut))
	for _, w := range cut {
		w = strings.TrimSpace(w)
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// isCJK reports whether r belongs to a script without whitespace word
// boundaries. Hangul is excluded: modern Korean uses spaces.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r)
}
