package formatter

import (
	"path"
	"strings"
)

const _defaultContentType = "application/octet-stream"

var _contentTypes = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".xhtml": "application/xhtml+xml",
	".css":   "text/css",
	".js":    "text/javascript",
	".mjs":   "text/javascript",
	".json":  "application/json",
	".map":   "application/json",
	".xml":   "application/xml",
	".txt":   "text/plain",
	".md":    "text/markdown",
	".csv":   "text/csv",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".avif":  "image/avif",
	".bmp":   "image/bmp",
	".ico":   "image/x-icon",
	".mp3":   "audio/mpeg",
	".wav":   "audio/wav",
	".ogg":   "audio/ogg",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".mov":   "video/quicktime",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".wasm":  "application/wasm",
	".pdf":   "application/pdf",
	".zip":   "application/zip",
}

// ContentType returns the MIME type for a path, keyed only by its extension.
func ContentType(name string) string {
	if ct, ok := _contentTypes[ext(name)]; ok {
		return ct
	}
	return _defaultContentType
}

// IsImage reports whether the extension maps to an image type.
func IsImage(name string) bool {
	return strings.HasPrefix(ContentType(name), "image/")
}

// IsMedia reports whether the extension maps to an audio or video type.
func IsMedia(name string) bool {
	ct := ContentType(name)
	return strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "video/")
}

func ext(name string) string {
	return strings.ToLower(path.Ext(name))
}
