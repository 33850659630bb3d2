package chunk

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniclipper/recall/internal/textseg"
)

func newSplitter(t *testing.T) *Splitter {
	t.Helper()
	tok, err := textseg.New()
	require.NoError(t, err)
	return NewSplitter(tok)
}

func TestSplitter_Split_EmptyInput(t *testing.T) {
	s := newSplitter(t)

	assert.Nil(t, s.Split("", DefaultOptions()))
	assert.Nil(t, s.Split("   \n  ", DefaultOptions()))
}

func TestSplitter_Split_ShortInputSingleChunk(t *testing.T) {
	s := newSplitter(t)

	pieces := s.Split("a short note", DefaultOptions())
	require.Len(t, pieces, 1)
	assert.Equal(t, "a short note", pieces[0].Text)
	assert.Equal(t, 0, pieces[0].Index)
	assert.NotEmpty(t, pieces[0].ID)
}

func TestSplitter_Split_RespectsSizeBound(t *testing.T) {
	s := newSplitter(t)
	opts := Options{Size: 100, Overlap: 20}

	text := strings.Repeat("some words in a sentence. ", 50)
	pieces := s.Split(text, opts)
	require.Greater(t, len(pieces), 1)

	for i, p := range pieces {
		n := utf8.RuneCountInString(p.Text)
		// A single unit longer than Size can exceed the bound; word-sized
		// units here never do.
		assert.LessOrEqual(t, n, opts.Size, "piece %d has %d runes", i, n)
		assert.Equal(t, i, p.Index)
	}
}

func TestSplitter_Split_IndexesContiguous(t *testing.T) {
	s := newSplitter(t)

	text := strings.Repeat("alpha beta gamma delta. ", 100)
	pieces := s.Split(text, Options{Size: 120, Overlap: 30})
	for i, p := range pieces {
		assert.Equal(t, i, p.Index)
	}
}

func TestSplitter_Split_UniqueIDs(t *testing.T) {
	s := newSplitter(t)

	text := strings.Repeat("unique identifier check. ", 60)
	pieces := s.Split(text, Options{Size: 80, Overlap: 10})
	seen := make(map[string]bool)
	for _, p := range pieces {
		assert.False(t, seen[p.ID], "duplicate chunk id %s", p.ID)
		seen[p.ID] = true
	}
}

// Every rune of the input must appear in some chunk: stripping each
// chunk's overlap seed and concatenating the remainders reconstructs
// the original text.
func TestSplitter_Split_CoversInput(t *testing.T) {
	s := newSplitter(t)
	opts := Options{Size: 90, Overlap: 25}

	// Aperiodic inputs: a repeating body would let the suffix match below
	// drop more than the overlap seed.
	var latin, mixed strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&latin, "sentence number %d has its own distinct words. ", i)
		fmt.Fprintf(&mixed, "第%d段的内容各不相同。", i)
	}
	inputs := []string{
		latin.String(),
		"para one\n\npara two\n\n" + latin.String(),
		mixed.String(),
	}

	for _, text := range inputs {
		pieces := s.Split(text, opts)
		require.NotEmpty(t, pieces)

		reconstructed := pieces[0].Text
		for i := 1; i < len(pieces); i++ {
			cur := pieces[i].Text
			// The overlap seed is a suffix of what was already emitted;
			// find the longest such prefix of cur and drop it.
			drop := 0
			for k := len(cur); k > 0; k-- {
				if strings.HasSuffix(reconstructed, cur[:k]) {
					drop = k
					break
				}
			}
			reconstructed += cur[drop:]
		}
		assert.Equal(t, text, reconstructed)
	}
}

func TestSplitter_Split_PrefersParagraphBoundaries(t *testing.T) {
	s := newSplitter(t)

	para1 := strings.Repeat("first paragraph words ", 4)
	para2 := strings.Repeat("second paragraph words ", 4)
	text := para1 + "\n\n" + para2

	pieces := s.Split(text, Options{Size: utf8.RuneCountInString(para1) + 5, Overlap: 0})
	require.GreaterOrEqual(t, len(pieces), 2)
	assert.True(t, strings.HasSuffix(pieces[0].Text, "\n\n"),
		"first chunk should close at the paragraph break, got %q", pieces[0].Text)
}

func TestSplitter_Split_OverlapSeedsNextChunk(t *testing.T) {
	s := newSplitter(t)
	opts := Options{Size: 60, Overlap: 20}

	text := strings.Repeat("overlap window words here ", 20)
	pieces := s.Split(text, opts)
	require.Greater(t, len(pieces), 1)

	for i := 1; i < len(pieces); i++ {
		cur := pieces[i].Text
		// Some prefix of each later chunk repeats the previous chunk's tail.
		overlapped := false
		for k := 1; k <= len(cur); k++ {
			if strings.HasSuffix(pieces[i-1].Text, cur[:k]) {
				overlapped = true
				break
			}
		}
		assert.True(t, overlapped, "chunk %d does not overlap its predecessor", i)
	}
}

func TestSplitter_Split_DegenerateInputHardSlices(t *testing.T) {
	s := newSplitter(t)
	opts := Options{Size: 50, Overlap: 10}

	// No whitespace, no punctuation, no CJK: only hard slicing applies.
	text := strings.Repeat("x", 200)
	pieces := s.Split(text, opts)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Text), opts.Size)
	}

	// Stride is Size-Overlap, so consecutive slices share Overlap runes.
	assert.Equal(t, text[:opts.Size], pieces[0].Text)
}

func TestSplitter_Split_CJKSentences(t *testing.T) {
	s := newSplitter(t)
	opts := Options{Size: 30, Overlap: 0}

	text := strings.Repeat("这是一个完整的句子。", 10)
	pieces := s.Split(text, opts)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Text), opts.Size)
	}
}

func TestSplitter_Split_InvalidOptionsFallBack(t *testing.T) {
	s := newSplitter(t)

	text := strings.Repeat("words in the body ", 100)
	pieces := s.Split(text, Options{Size: 0, Overlap: -5})
	require.NotEmpty(t, pieces)
	for _, p := range pieces {
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Text), DefaultSize)
	}
}
