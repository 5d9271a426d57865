package cache

import "strings"

// DefaultMimeType is used for unknown or missing extensions
const DefaultMimeType = "application/octet-stream"

var mimeTypes = map[string]string{
	"css":         "text/css",
	"docx":        "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"gif":         "image/gif",
	"htm":         "text/html; charset=UTF-8",
	"html":        "text/html; charset=UTF-8",
	"ico":         "image/x-icon",
	"jpeg":        "image/jpeg",
	"jpg":         "image/jpeg",
	"js":          "application/javascript",
	"json":        "application/json",
	"md":          "text/markdown",
	"pdf":         "application/pdf",
	"png":         "image/png",
	"svg":         "image/svg+xml",
	"txt":         "text/plain; charset=UTF-8",
	"webmanifest": "application/manifest+json",
	"webp":        "image/webp",
	"woff":        "font/woff",
	"woff2":       "font/woff2",
	"xml":         "text/xml",
}

// MimeType returns the content type for path based on its extension,
// compared case insensitively
func MimeType(path string) string {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 || dot == len(path)-1 || strings.IndexByte(path[dot:], '/') >= 0 {
		return DefaultMimeType
	}
	if m, ok := mimeTypes[strings.ToLower(path[dot+1:])]; ok {
		return m
	}
	return DefaultMimeType
}
