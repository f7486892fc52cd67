package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWebSources(t *testing.T) {
	urls := []string{
		"https://go.dev/doc/",
		"https://go.dev/doc/", // duplicate
		"",
		"https://pkg.go.dev/net/http",
	}

	sources := NormalizeWebSources(urls)
	require.Len(t, sources, 2)

	assert.Equal(t, "url", sources[0].Type)
	assert.Equal(t, 1, sources[0].Order)
	assert.Equal(t, "https://go.dev/doc/", sources[0].URL)
	assert.Equal(t, "go.dev", sources[0].Title)

	assert.Equal(t, 2, sources[1].Order)
	assert.Equal(t, "pkg.go.dev", sources[1].Title)
}

func TestNormalizeWebSources_Cap(t *testing.T) {
	var urls []string
	for i := 0; i < 10; i++ {
		urls = append(urls, fmt.Sprintf("https://example.com/%d", i))
	}
	sources := NormalizeWebSources(urls)
	assert.Len(t, sources, maxWebSources)
}

func TestNormalizeWebSources_Empty(t *testing.T) {
	assert.Empty(t, NormalizeWebSources(nil))
}
