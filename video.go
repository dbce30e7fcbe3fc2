package featmy

import (
	"net/url"
	"strings"
)

// VideoEmbedURL normalizes a YouTube or Vimeo watch URL into its embeddable
// form. Already-embeddable URLs pass through unchanged; anything it cannot
// recognize returns ok=false so callers can skip the embed.
func VideoEmbedURL(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")

	switch host {
	case "youtube.com", "m.youtube.com":
		if strings.HasPrefix(parsed.Path, "/embed/") {
			return raw, true
		}
		if strings.HasPrefix(parsed.Path, "/shorts/") {
			id := strings.TrimPrefix(parsed.Path, "/shorts/")
			return youtubeEmbed(id)
		}
		if parsed.Path == "/watch" {
			return youtubeEmbed(parsed.Query().Get("v"))
		}
	case "youtu.be":
		return youtubeEmbed(strings.TrimPrefix(parsed.Path, "/"))
	case "player.vimeo.com":
		return raw, true
	case "vimeo.com":
		id := strings.Trim(parsed.Path, "/")
		if id == "" || strings.Contains(id, "/") {
			return "", false
		}
		return "https://player.vimeo.com/video/" + id, true
	}

	return "", false
}

func youtubeEmbed(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	if i := strings.IndexAny(id, "/?&"); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return "", false
	}
	return "https://www.youtube.com/embed/" + id, true
}
