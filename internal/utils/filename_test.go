package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAuthorFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		title    string
		expected string
	}{
		{
			name:     "title dash author",
			filename: "/sdcard/Books/Roadside Picnic - Arkady Strugatsky.epub",
			title:    "Roadside Picnic",
			expected: "Arkady Strugatsky",
		},
		{
			name:     "double extension",
			filename: "Мастер и Маргарита - Булгаков.fb2.zip",
			title:    "Мастер и Маргарита",
			expected: "Булгаков",
		},
		{
			name:     "no author part",
			filename: "/sdcard/Books/Roadside Picnic.epub",
			title:    "Roadside Picnic",
			expected: "",
		},
		{
			name:     "title not in filename",
			filename: "/sdcard/Books/unrelated.epub",
			title:    "Roadside Picnic",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractAuthorFromFilename(tt.filename, tt.title))
		})
	}
}
