package notify

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_SingleChunkWhenUnderBudget(t *testing.T) {
	body := "### Section A\nhello\n### Section B\nworld"
	chunks := Chunk(body, 4096)
	require.Len(t, chunks, 1)
	assert.Equal(t, body, chunks[0])
}

func TestChunk_MultipleChunksGetMarkers(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("\n---\n")
		b.WriteString(strings.Repeat("x", 500))
	}
	chunks := Chunk(b.String(), 2048)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Contains(t, c, "("+strconv.Itoa(i+1)+"/"+strconv.Itoa(len(chunks))+")")
	}
}

func TestChunk_EveryChunkWithinByteBudget(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 80; i++ {
		b.WriteString("\n### heading\n")
		b.WriteString(strings.Repeat("粒", 100))
	}
	budget := 2048
	chunks := Chunk(b.String(), budget)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), budget, "chunk exceeds byte budget")
	}
}

func TestChunk_TruncatesOversizedSingleSection(t *testing.T) {
	huge := strings.Repeat("测试", 2000) // one section, no separators at all
	chunks := Chunk(huge, 512)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 512)
	}
}

func TestChunk_PreservesSectionOrderOnReconstruction(t *testing.T) {
	body := "### one\naaa\n### two\nbbb\n### three\nccc"
	chunks := Chunk(body, 4096)
	require.Len(t, chunks, 1)
	assert.True(t, strings.Index(chunks[0], "one") < strings.Index(chunks[0], "two"))
	assert.True(t, strings.Index(chunks[0], "two") < strings.Index(chunks[0], "three"))
}

func TestTruncateUTF8_NeverSplitsARune(t *testing.T) {
	s := strings.Repeat("中", 100)
	out := truncateUTF8(s, 51)
	require.True(t, utf8.ValidString(out), "truncated output must remain valid UTF-8")
	assert.LessOrEqual(t, len(out), 51)
}
