package formatter

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/live-preview/src/lpd/entity"
)

func TestNotFound(t *testing.T) {
	resp := New().NotFound("/missing.html")

	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "Not Found", resp.StatusText)
	assert.Equal(t, "text/html", resp.Header("Content-Type"))
	assert.Contains(t, string(resp.Body), "The requested URL /missing.html was not found on this server.")
	assert.True(t, strings.HasSuffix(string(resp.Body), _footer))
}

func TestInternalError(t *testing.T) {
	resp := New().InternalError("/a<b>.html", errors.New("permission denied"))

	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, "Internal Error", resp.StatusText)
	assert.Contains(t, string(resp.Body), "The error was: permission denied.")
	assert.Contains(t, string(resp.Body), "/a&lt;b&gt;.html")
}

func TestFile(t *testing.T) {
	tests := []struct {
		path        string
		contentType string
	}{
		{path: "/index.html", contentType: "text/html"},
		{path: "/css/SITE.CSS", contentType: "text/css"},
		{path: "/img/logo.png", contentType: "image/png"},
		{path: "/bin/blob", contentType: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := New().File(tt.path, []byte("data"))
			assert.Equal(t, http.StatusOK, resp.Status)
			assert.Equal(t, "OK", resp.StatusText)
			assert.Equal(t, tt.contentType, resp.Header("Content-Type"))
			assert.Equal(t, []byte("data"), resp.Body)
		})
	}
}

func TestDirectoryListing(t *testing.T) {
	mtime := time.Date(2024, time.April, 20, 17, 4, 0, 0, time.UTC)
	entries := []entity.DirEntry{
		{Name: "assets", StatResult: entity.StatResult{IsDir: true, Size: 4096, ModTime: mtime}},
		{Name: "my page.html", StatResult: entity.StatResult{Size: 120, ModTime: mtime}},
		{Name: "logo.png", StatResult: entity.StatResult{Size: 2048, ModTime: mtime}},
		{Name: "intro.mp4", StatResult: entity.StatResult{Size: 3 << 20, ModTime: mtime}},
	}

	resp := New().DirectoryListing("/preview", "/site", entries)
	body := string(resp.Body)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "text/html", resp.Header("Content-Type"))
	assert.Contains(t, body, "<title>Index of /site</title>")
	assert.Contains(t, body, "<a href='/preview/'>Parent Directory</a>")
	assert.Contains(t, body, "<a href='/preview/site/assets'>assets</a>")
	assert.Contains(t, body, "<a href='/preview/site/my%20page.html'>my page.html</a>")
	assert.Contains(t, body, "<a href='/preview/site/logo.png'>logo.png</a>")
	assert.Contains(t, body, "alt='[DIR]'")
	assert.Contains(t, body, "alt='[IMG]'")
	assert.Contains(t, body, "alt='[MOV]'")
	assert.Contains(t, body, "alt='[TXT]'")
	assert.Contains(t, body, "20-Apr-2024 17:4")
	assert.Contains(t, body, "<td align='right'>120</td>")
	assert.Contains(t, body, "<td align='right'>2K</td>")
	assert.Contains(t, body, "<td align='right'>3M</td>")
	assert.True(t, strings.HasSuffix(body, _footer))
}

func TestDirectoryListing_EscapesNames(t *testing.T) {
	entries := []entity.DirEntry{{Name: "<script>.txt", StatResult: entity.StatResult{Size: 1}}}
	body := string(New().DirectoryListing("/preview", "/", entries).Body)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;.txt")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{size: 0, want: "-"},
		{size: 1, want: "1"},
		{size: 1023, want: "1023"},
		{size: 1024, want: "1K"},
		{size: 1536, want: "2K"},
		{size: 1 << 20, want: "1M"},
		{size: 5 << 30, want: "5120M"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.size), "size %d", tt.size)
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "20-Apr-2024 17:14", formatDate(time.Date(2024, time.April, 20, 17, 14, 0, 0, time.UTC)))
	assert.Equal(t, "3-Jan-2025 9:5", formatDate(time.Date(2025, time.January, 3, 9, 5, 0, 0, time.UTC)))
}

func TestContentDisposition(t *testing.T) {
	stat := entity.StatResult{Size: 120, ModTime: time.Date(2024, time.April, 20, 17, 14, 0, 0, time.UTC)}
	assert.Equal(t,
		`attachment; filename="report.pdf"; modification-date="Sat, 20 Apr 2024 17:14:00 GMT"; size=120;`,
		ContentDisposition("/docs/report.pdf", stat))
}

func TestContentTypeCategories(t *testing.T) {
	require.True(t, IsImage("a.SVG"))
	require.False(t, IsImage("a.mp3"))
	require.True(t, IsMedia("a.mp3"))
	require.True(t, IsMedia("a.webm"))
	require.False(t, IsMedia("a.html"))
	require.False(t, IsImage("noext"))
}
