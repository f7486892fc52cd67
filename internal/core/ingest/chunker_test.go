package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunker(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "valid", size: 900, overlap: 150},
		{name: "zero overlap", size: 100, overlap: 0},
		{name: "zero size", size: 0, overlap: 0, wantErr: true},
		{name: "negative overlap", size: 100, overlap: -1, wantErr: true},
		{name: "overlap equals size", size: 100, overlap: 100, wantErr: true},
		{name: "overlap exceeds size", size: 100, overlap: 150, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
		})
	}
}

func TestSplit_WindowGeometry(t *testing.T) {
	// 2000 characters with size 900 / overlap 150 starts windows at
	// 0, 750 and 1500 -> exactly 3 chunks.
	c, err := NewChunker(900, 150)
	require.NoError(t, err)

	text := strings.Repeat("a", 2000)
	chunks := c.Split(text)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 900)
	assert.Len(t, chunks[1], 900)
	assert.Len(t, chunks[2], 500)
}

func TestSplit_OverlapShared(t *testing.T) {
	c, err := NewChunker(10, 3)
	require.NoError(t, err)

	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := c.Split(text)

	require.True(t, len(chunks) >= 2)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := string(prev[len(prev)-3:])
		assert.True(t, strings.HasPrefix(chunks[i], tail),
			"chunk %d should start with the last 3 runes of chunk %d", i, i-1)
	}
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch)), 10)
	}
}

func TestSplit_CoversNormalizedInput(t *testing.T) {
	c, err := NewChunker(10, 3)
	require.NoError(t, err)

	text := "the quick brown fox jumps over the lazy dog"
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	// Concatenating chunks with the overlap removed reconstructs the
	// normalized input (modulo the per-slice trimming).
	var b strings.Builder
	b.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		runes := []rune(chunks[i])
		if len(runes) > 3 {
			b.WriteString(string(runes[3:]))
		}
	}
	rebuilt := strings.ReplaceAll(b.String(), " ", "")
	want := strings.ReplaceAll(normalizeWhitespace(text), " ", "")
	assert.Equal(t, want, rebuilt)
}

func TestSplit_Normalization(t *testing.T) {
	c, err := NewChunker(900, 150)
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "whitespace only", input: " \t \r\n ", want: nil},
		{name: "crlf unified", input: "a\r\nb\rc", want: []string{"a\nb\nc"}},
		{name: "tabs and runs collapsed", input: "a\t\tb   c", want: []string{"a b c"}},
		{name: "trimmed", input: "  hello  ", want: []string{"hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Split(tt.input))
		})
	}
}

func TestSplit_KoreanRunesNotCut(t *testing.T) {
	c, err := NewChunker(5, 1)
	require.NoError(t, err)

	chunks := c.Split("가나다라마바사아자차")
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch)), 5)
		assert.True(t, strings.ContainsAny(ch, "가나다라마바사아자차"))
	}
}
