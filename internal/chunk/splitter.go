// Package chunk splits document text into overlapping, search-granular
// pieces. Natural boundaries are preferred in priority order (paragraph
// breaks, line breaks, sentence punctuation) before falling back to
// word-level accumulation and finally fixed-size slicing.
package chunk

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/omniclipper/recall/internal/textseg"
)

// Canonical chunking defaults. Callers pass Options explicitly; these are
// the single default pair used across the engine.
const (
	DefaultSize    = 600
	DefaultOverlap = 80
)

// Options bounds chunk construction. Size and Overlap are rune counts.
type Options struct {
	Size    int
	Overlap int
}

// DefaultOptions returns the canonical chunking parameters.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Piece is one chunk of a document.
type Piece struct {
	ID    string // freshly generated unique identifier
	Text  string
	Index int // 0-based position within the parent document
}

// Splitter chunks text, reusing the tokenizer for CJK word boundaries.
type Splitter struct {
	tok *textseg.Tokenizer
}

// NewSplitter creates a Splitter backed by the given tokenizer.
func NewSplitter(tok *textseg.Tokenizer) *Splitter {
	return &Splitter{tok: tok}
}

// separators in descending boundary priority. Word-level splitting and
// fixed slicing are handled separately after these are exhausted.
var separators = []string{"\n\n\n", "\n\n", "\n"}

// sentence-ending punctuation, Latin and CJK period forms.
const sentenceEnders = ".!?。！？"

// Split chunks text according to opts. Units are substrings of the input,
// so concatenating the non-overlap cores of all pieces reconstructs the
// original text.
func (s *Splitter) Split(text string, opts Options) []Piece {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.Size {
		opts.Overlap = opts.Size / 8
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= opts.Size {
		return []Piece{newPiece(text, 0)}
	}

	units := s.decompose(text, 0, opts)
	return assemble(units, opts, s)
}

// decompose recursively splits text into units no longer than opts.Size
// where boundaries allow, descending through separator levels. Levels:
// 0-2 newline separators, 3 sentence punctuation, 4 words, 5 hard slices.
func (s *Splitter) decompose(text string, level int, opts Options) []string {
	if utf8.RuneCountInString(text) <= opts.Size {
		return []string{text}
	}

	var parts []string
	switch {
	case level < len(separators):
		parts = splitAfterSeparator(text, separators[level])
	case level == len(separators):
		parts = splitAfterSentences(text)
	case level == len(separators)+1:
		parts = s.splitWords(text)
	default:
		return hardSlices(text, opts)
	}

	if len(parts) <= 1 {
		return s.decompose(text, level+1, opts)
	}

	var units []string
	for _, p := range parts {
		if utf8.RuneCountInString(p) > opts.Size {
			units = append(units, s.decompose(p, level+1, opts)...)
		} else {
			units = append(units, p)
		}
	}
	return units
}

// splitAfterSeparator splits text keeping the separator attached to the
// preceding part, so parts concatenate back to the original.
func splitAfterSeparator(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitAfterSentences splits after sentence-ending punctuation.
func splitAfterSentences(text string) []string {
	var parts []string
	last := 0
	for i, r := range text {
		if strings.ContainsRune(sentenceEnders, r) {
			end := i + utf8.RuneLen(r)
			parts = append(parts, text[last:end])
			last = end
		}
	}
	if last < len(text) {
		parts = append(parts, text[last:])
	}
	return parts
}

// splitWords splits text into word units. Whitespace stays attached to the
// preceding word; CJK runs split at dictionary word boundaries.
func (s *Splitter) splitWords(text string) []string {
	var units []string
	fields := strings.SplitAfter(text, " ")
	for _, f := range fields {
		if f == "" {
			continue
		}
		trimmed := strings.TrimRight(f, " ")
		if containsCJKRun(trimmed) && utf8.RuneCountInString(trimmed) > 1 {
			words := s.tok.Words(trimmed)
			if len(words) > 1 && strings.Join(words, "") == trimmed {
				units = append(units, words...)
				if tail := f[len(trimmed):]; tail != "" {
					units[len(units)-1] += tail
				}
				continue
			}
		}
		units = append(units, f)
	}
	return units
}

func containsCJKRun(s string) bool {
	for _, r := range s {
		if r >= 0x2E80 { // CJK blocks start around here; cheap pre-filter
			return true
		}
	}
	return false
}

// hardSlices is the degenerate fallback for input without any word
// boundaries: fixed-size rune slices with Size-Overlap stride.
func hardSlices(text string, opts Options) []string {
	runes := []rune(text)
	stride := opts.Size - opts.Overlap
	if stride <= 0 {
		stride = opts.Size
	}
	var units []string
	for start := 0; start < len(runes); start += stride {
		end := start + opts.Size
		if end > len(runes) {
			end = len(runes)
		}
		units = append(units, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return units
}

// assemble greedily packs units into chunks bounded by opts.Size, seeding
// each chunk after the first with a backward-looking overlap window of the
// previous chunk's trailing words.
func assemble(units []string, opts Options, s *Splitter) []Piece {
	var pieces []Piece
	var cur strings.Builder
	curLen := 0

	flush := func() string {
		if curLen == 0 {
			return ""
		}
		text := cur.String()
		pieces = append(pieces, newPiece(text, len(pieces)))
		cur.Reset()
		curLen = 0
		return text
	}

	for _, u := range units {
		uLen := utf8.RuneCountInString(u)
		if curLen > 0 && curLen+uLen > opts.Size {
			closed := flush()
			if opts.Overlap > 0 {
				overlap := s.trailingWindow(closed, opts.Overlap)
				cur.WriteString(overlap)
				curLen = utf8.RuneCountInString(overlap)
			}
		}
		cur.WriteString(u)
		curLen += uLen
	}
	flush()

	return pieces
}

// trailingWindow returns the suffix of text starting at a word boundary
// whose rune length does not exceed max. The result is an exact suffix so
// seeding the next chunk with it preserves the original character stream.
func (s *Splitter) trailingWindow(text string, max int) string {
	words := s.splitWords(text)
	total := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		wLen := utf8.RuneCountInString(words[i])
		if total+wLen > max {
			break
		}
		total += wLen
		start = i
	}
	if start == len(words) {
		return ""
	}
	return strings.Join(words[start:], "")
}

func newPiece(text string, index int) Piece {
	return Piece{
		ID:    uuid.NewString(),
		Text:  text,
		Index: index,
	}
}
