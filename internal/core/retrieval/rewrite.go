package retrieval

import (
	"regexp"
	"strings"
)

const (
	// shortQueryLen is the trimmed length under which a query is assumed to
	// lean on conversation context.
	shortQueryLen = 15

	// rewrittenQueryLimit caps the combined query handed to the embedder.
	rewrittenQueryLimit = 800
)

var (
	referentialPattern = regexp.MustCompile(`그거|이거|저거|그것|이것|저것|위에서|앞에서|아까|방금|추가로|더 자세히|다시`)
	greetingPattern    = regexp.MustCompile(`^(안녕|안녕하세요|ㅎㅇ|하이|hello|hi|hey)$`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
)

// IsReferential reports whether the question depends on earlier turns, either
// by brevity or by a referential expression.
func IsReferential(question string) bool {
	trimmed := strings.TrimSpace(question)
	if len([]rune(trimmed)) < shortQueryLen {
		return true
	}
	return referentialPattern.MatchString(trimmed)
}

// IsGreeting reports whether the question is a bare greeting.
func IsGreeting(question string) bool {
	normalized := strings.ToLower(strings.TrimSpace(question))
	normalized = strings.TrimRight(normalized, "!.?~ ")
	return greetingPattern.MatchString(normalized)
}

// BuildQuery produces the retrieval query: the question is trimmed and its
// whitespace runs collapsed, and referential questions are prefixed with the
// previous user turn so the embedding carries the missing context.
func BuildQuery(question, lastUserMessage string) string {
	q := whitespaceRun.ReplaceAllString(strings.TrimSpace(question), " ")
	if lastUserMessage == "" || !IsReferential(q) {
		return q
	}
	combined := strings.TrimSpace(lastUserMessage) + "\n" + q
	if runes := []rune(combined); len(runes) > rewrittenQueryLimit {
		combined = string(runes[:rewrittenQueryLimit])
	}
	return combined
}
