// Package compose builds the lexical-index surface text for a document.
// Metadata fields are repeated at fixed multiplicities ahead of the body so
// that a stock BM25 ranker implicitly up-weights metadata matches: repeating
// high-priority terms inflates their term frequency and therefore their
// contribution to the score, approximating field-weighted search without a
// custom scoring function.
package compose

import (
	"regexp"
	"strings"

	"github.com/omniclipper/recall/internal/item"
	"github.com/omniclipper/recall/internal/textseg"
)

// Repetition multiplicities per field, highest priority first.
const (
	folderWeight   = 10
	categoryWeight = 8
	tagWeight      = 5
	titleWeight    = 3
	h1Weight       = 3
	h2Weight       = 2
	h3Weight       = 1
)

var headingPattern = regexp.MustCompile(`(?m)^(#{1,3})\s+(.+)$`)

// Compose assembles the weighted surface text for a document and tokenizes
// it so the result is ready for chunking and lexical indexing.
func Compose(text string, meta item.Metadata, tok *textseg.Tokenizer) string {
	var b strings.Builder

	repeat(&b, meta.FolderName, folderWeight)
	repeat(&b, meta.Category, categoryWeight)
	for _, tag := range meta.Tags {
		repeat(&b, tag, tagWeight)
	}
	repeat(&b, meta.Title, titleWeight)

	h1, h2, h3 := extractHeadings(text)
	for _, h := range h1 {
		repeat(&b, h, h1Weight)
	}
	for _, h := range h2 {
		repeat(&b, h, h2Weight)
	}
	for _, h := range h3 {
		repeat(&b, h, h3Weight)
	}

	b.WriteString(text)

	return tok.Tokenize(b.String())
}

// repeat appends value n times, whitespace-separated. Empty values are
// skipped so absent optional fields contribute nothing.
func repeat(b *strings.Builder, value string, n int) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	for i := 0; i < n; i++ {
		b.WriteString(value)
		b.WriteString(" ")
	}
}

// extractHeadings pulls H1-H3 heading texts from markdown heading markers in
// the body.
func extractHeadings(text string) (h1, h2, h3 []string) {
	for _, m := range headingPattern.FindAllStringSubmatch(text, -1) {
		title := strings.TrimSpace(m[2])
		switch len(m[1]) {
		case 1:
			h1 = append(h1, title)
		case 2:
			h2 = append(h2, title)
		case 3:
			h3 = append(h3, title)
		}
	}
	return h1, h2, h3
}
