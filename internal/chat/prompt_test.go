package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"docchat/internal/core/retrieval"
)

func TestBuildPrompt(t *testing.T) {
	system, user := BuildPrompt("해지 조건이 뭐야?", []retrieval.Candidate{
		{ID: "c1", Content: "  제10조 해지는 서면으로 한다  ", Similarity: 0.8123},
		{ID: "faq-3", Content: "위약금 안내", Similarity: 0.52, FromFAQ: true},
	})

	assert.Contains(t, system, "문서에서 확인되지 않음")
	assert.Contains(t, system, "핵심 요약")

	assert.Contains(t, user, "질문: 해지 조건이 뭐야?")
	assert.Contains(t, user, "[1] (score: 0.812)\n제10조 해지는 서면으로 한다")
	assert.Contains(t, user, "[2] (score: 0.520)\n위약금 안내")
	assert.True(t, strings.HasSuffix(user, "위 컨텍스트에 근거해 간결하게 답변하세요."))
}

func TestBuildPrompt_NoCandidates(t *testing.T) {
	_, user := BuildPrompt("질문", nil)
	assert.Contains(t, user, "(일치하는 컨텍스트가 없습니다.)")
}
