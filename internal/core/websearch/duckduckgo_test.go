package websearch

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `
<html><body>
  <div class="result">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fdocs&amp;rut=abc">Example Docs</a>
    <a class="result__snippet">Documentation for the example project.</a>
  </div>
  <div class="result">
    <a class="result__a" href="https://another.example.org/page">Another Page</a>
    <a class="result__snippet">A second snippet.</a>
  </div>
  <div class="result">
    <span>no link here</span>
  </div>
  <div class="result">
    <a class="result__a" href="https://third.example.net/">Third</a>
    <a class="result__snippet">Third snippet.</a>
  </div>
</body></html>`

func TestParseResults(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(samplePage))
	require.NoError(t, err)

	results := parseResults(doc, 10)
	require.Len(t, results, 3)

	assert.Equal(t, "Example Docs", results[0].Title)
	assert.Equal(t, "https://example.com/docs", results[0].URL)
	assert.Equal(t, "Documentation for the example project.", results[0].Snippet)

	assert.Equal(t, "https://another.example.org/page", results[1].URL)
	assert.Equal(t, "https://third.example.net/", results[2].URL)
}

func TestParseResults_Limit(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(samplePage))
	require.NoError(t, err)

	results := parseResults(doc, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/docs", results[0].URL)
}

func TestResolveRedirect(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa%20b", "https://example.com/a b"},
		{"https://plain.example.com/", "https://plain.example.com/"},
		{"//bare.example.com/path", "https://bare.example.com/path"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveRedirect(tt.href), tt.href)
	}
}
