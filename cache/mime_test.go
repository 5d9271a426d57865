package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMimeType(t *testing.T) {
	tests := map[string]string{
		"/style.css":           "text/css",
		"/STYLE.CSS":           "text/css",
		"/index.html":          "text/html; charset=UTF-8",
		"/app.js":              "application/javascript",
		"/logo.png":            "image/png",
		"/photo.JPeG":          "image/jpeg",
		"/site.webmanifest":    "application/manifest+json",
		"/feed.xml":            "text/xml",
		"/README":              DefaultMimeType,
		"/archive.tar.gz":      DefaultMimeType,
		"/trailing.":           DefaultMimeType,
		"/dir.d/file":          DefaultMimeType,
		"/.hidden":             DefaultMimeType,
		"/docs/report.docx":    "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"/error/404/index.htm": "text/html; charset=UTF-8",
	}
	for path, want := range tests {
		assert.Equal(t, want, MimeType(path), path)
	}
}

func TestMimeTypesInterned(t *testing.T) {
	a := newEntry("/a.css", nil)
	b := newEntry("/b.css", nil)
	assert.Equal(t, a.MIME, b.MIME)
}
