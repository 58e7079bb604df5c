// Package formatter renders virtual server responses as Apache-style HTML pages.
package formatter

import (
	"fmt"
	"html"
	"net/http"
	"path"

	"github.com/uber/live-preview/src/lpd/entity"
)

const (
	_statusTextOK            = "OK"
	_statusTextNotFound      = "Not Found"
	_statusTextInternalError = "Internal Error"

	_footer = "<address>nohost (Web Browser Server)</address></body></html>"
)

// Formatter builds the responses handed back by the virtual server.
type Formatter interface {
	NotFound(urlPath string) entity.Response
	InternalError(urlPath string, err error) entity.Response
	DirectoryListing(route, dirPath string, entries []entity.DirEntry) entity.Response
	File(urlPath string, body []byte) entity.Response
}

type htmlFormatter struct{}

// New returns the HTML formatter.
func New() Formatter {
	return htmlFormatter{}
}

func (htmlFormatter) NotFound(urlPath string) entity.Response {
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html><head>
<title>404 Not Found</title>
</head><body>
<h1>Not Found</h1>
<p>The requested URL %s was not found on this server.</p>
<hr>%s`, html.EscapeString(urlPath), _footer)

	return htmlResponse(http.StatusNotFound, _statusTextNotFound, body)
}

func (htmlFormatter) InternalError(urlPath string, err error) entity.Response {
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html><head>
<title>500 Internal Server Error</title>
</head><body>
<h1>Internal Server Error</h1>
<p>The server encountered an internal error while attempting to access %s.</p>
<p>The error was: %s.</p>
<hr>%s`, html.EscapeString(urlPath), html.EscapeString(err.Error()), _footer)

	return htmlResponse(http.StatusInternalServerError, _statusTextInternalError, body)
}

func (htmlFormatter) DirectoryListing(route, dirPath string, entries []entity.DirEntry) entity.Response {
	return htmlResponse(http.StatusOK, _statusTextOK, renderListing(route, dirPath, entries))
}

func (htmlFormatter) File(urlPath string, body []byte) entity.Response {
	headers := http.Header{}
	headers.Set("Content-Type", ContentType(urlPath))
	return entity.Response{
		Body:       body,
		Status:     http.StatusOK,
		StatusText: _statusTextOK,
		Headers:    headers,
	}
}

// ContentDisposition returns the download header value for a file.
func ContentDisposition(urlPath string, stat entity.StatResult) string {
	return fmt.Sprintf(`attachment; filename="%s"; modification-date="%s"; size=%d;`,
		path.Base(urlPath), stat.ModTime.UTC().Format(http.TimeFormat), stat.Size)
}

func htmlResponse(status int, statusText, body string) entity.Response {
	headers := http.Header{}
	headers.Set("Content-Type", "text/html")
	return entity.Response{
		Body:       []byte(body),
		Status:     status,
		StatusText: statusText,
		Headers:    headers,
	}
}
