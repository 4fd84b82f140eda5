package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
	}{
		{"/site/index.html", "text/html"},
		{"/site/INDEX.HTML", "text/html"},
		{"/notes/readme.md", "text/markdown"},
		{"/conf/app.yaml", "text/plain"},
		{"/img/logo.png", "image/png"},
		{"/data/blob", "application/octet-stream"},
		{"/data/blob.unknownext", "application/octet-stream"},
		{"/dir.d/file", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := DetectContentType(tt.path)
			assert.True(t, strings.HasPrefix(got, tt.prefix), "got %q", got)
		})
	}
}
