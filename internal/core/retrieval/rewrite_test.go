package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReferential(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"그거 다시 설명해줘", true},
		{"아까 말한 조항이 뭐였지", true},
		{"더 자세히 알려줘", true},
		{"계약 해지 조건이 어떻게 되나요? 위약금 규정도 함께 알려주세요", false},
		{"네", true},                     // too short
		{"임대차 계약의 갱신 요건은 무엇인가요?", false}, // long enough, no reference
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsReferential(tt.question), tt.question)
	}
}

func TestIsGreeting(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"안녕하세요", true},
		{"안녕", true},
		{"하이", true},
		{"hello", true},
		{"Hi", true},
		{"hey!", true},
		{"안녕하세요, 계약서 질문이 있어요", false},
		{"hello world", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsGreeting(tt.question), tt.question)
	}
}

func TestBuildQuery(t *testing.T) {
	t.Run("standalone question unchanged", func(t *testing.T) {
		q := "임대차 계약의 갱신 요건은 무엇인가요?"
		assert.Equal(t, q, BuildQuery(q, "지난 질문"))
	})

	t.Run("referential question gets context prefix", func(t *testing.T) {
		got := BuildQuery("그거 다시 설명해줘", "계약 해지 조건이 뭐야?")
		assert.Equal(t, "계약 해지 조건이 뭐야?\n그거 다시 설명해줘", got)
	})

	t.Run("whitespace runs collapse before anything else", func(t *testing.T) {
		got := BuildQuery("  임대차   계약의\n갱신 요건은\t무엇인가요?  ", "지난 질문")
		assert.Equal(t, "임대차 계약의 갱신 요건은 무엇인가요?", got)
	})

	t.Run("short-query check sees the collapsed form", func(t *testing.T) {
		// Padded out past 15 runes, but only 12 once the runs collapse, so
		// the context prefix still applies.
		got := BuildQuery("그게   뭐야   알려줘     지금", "계약 해지 조건이 뭐야?")
		assert.Equal(t, "계약 해지 조건이 뭐야?\n그게 뭐야 알려줘 지금", got)
	})

	t.Run("no history leaves question alone", func(t *testing.T) {
		assert.Equal(t, "그거 다시 설명해줘", BuildQuery("그거 다시 설명해줘", ""))
	})

	t.Run("combined query is capped", func(t *testing.T) {
		long := strings.Repeat("가", 900)
		got := BuildQuery("다시", long)
		assert.Len(t, []rune(got), rewrittenQueryLimit)
	})
}
