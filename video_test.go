package featmy_test

import (
	"testing"

	featmy "github.com/AFJoao/FEATMY-V2"
	"github.com/stretchr/testify/assert"
)

func TestVideoEmbedURL(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{
			name:     "youtube watch url",
			input:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			expected: "https://www.youtube.com/embed/dQw4w9WgXcQ",
			ok:       true,
		},
		{
			name:     "youtube short link",
			input:    "https://youtu.be/dQw4w9WgXcQ",
			expected: "https://www.youtube.com/embed/dQw4w9WgXcQ",
			ok:       true,
		},
		{
			name:     "youtube short link with tracking params",
			input:    "https://youtu.be/dQw4w9WgXcQ?si=abc123",
			expected: "https://www.youtube.com/embed/dQw4w9WgXcQ",
			ok:       true,
		},
		{
			name:     "youtube shorts",
			input:    "https://www.youtube.com/shorts/dQw4w9WgXcQ",
			expected: "https://www.youtube.com/embed/dQw4w9WgXcQ",
			ok:       true,
		},
		{
			name:     "mobile youtube watch",
			input:    "https://m.youtube.com/watch?v=dQw4w9WgXcQ",
			expected: "https://www.youtube.com/embed/dQw4w9WgXcQ",
			ok:       true,
		},
		{
			name:     "already embedded youtube passes through",
			input:    "https://www.youtube.com/embed/dQw4w9WgXcQ",
			expected: "https://www.youtube.com/embed/dQw4w9WgXcQ",
			ok:       true,
		},
		{
			name:     "vimeo page url",
			input:    "https://vimeo.com/76979871",
			expected: "https://player.vimeo.com/video/76979871",
			ok:       true,
		},
		{
			name:     "already embedded vimeo passes through",
			input:    "https://player.vimeo.com/video/76979871",
			expected: "https://player.vimeo.com/video/76979871",
			ok:       true,
		},
		{
			name:  "vimeo channel path is not a video",
			input: "https://vimeo.com/channels/staffpicks/76979871",
			ok:    false,
		},
		{
			name:  "unknown host",
			input: "https://example.com/watch?v=abc",
			ok:    false,
		},
		{
			name:  "watch url without id",
			input: "https://www.youtube.com/watch",
			ok:    false,
		},
		{
			name:  "not a url",
			input: "definitely not a url",
			ok:    false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			embed, ok := featmy.VideoEmbedURL(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, embed)
			}
		})
	}
}
