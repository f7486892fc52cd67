package chat

import (
	"net/url"

	"docchat/internal/models"
)

// maxWebSources caps how many cited URLs attach to a web-mode answer.
const maxWebSources = 6

// NormalizeWebSources deduplicates cited URLs in first-use order, caps the
// list, and numbers the survivors.
func NormalizeWebSources(urls []string) []models.Source {
	seen := make(map[string]bool, len(urls))
	var out []models.Source
	for _, raw := range urls {
		if raw == "" || seen[raw] {
			continue
		}
		seen[raw] = true
		out = append(out, models.Source{
			Type:  "url",
			Order: len(out) + 1,
			URL:   raw,
			Title: hostOf(raw),
		})
		if len(out) == maxWebSources {
			break
		}
	}
	return out
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
