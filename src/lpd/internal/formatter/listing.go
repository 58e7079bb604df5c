package formatter

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"path"
	"time"

	"github.com/uber/live-preview/src/lpd/entity"
)

// A transparent pixel stands in for the icon set; the alt text carries the entry kind.
const _blankIcon = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

var _sizeUnits = []string{"", "K", "M"}

var _listingTemplate = template.Must(template.New("listing").Parse(`
<!DOCTYPE html>
<html><head><title>Index of {{.Dir}}</title></head>
<body><h1>Index of {{.Dir}}</h1>
<table><tr><th><img src='{{.Icon}}' alt='[ICO]'></th>
<th><b>Name</b></th><th><b>Last modified</b></th>
<th><b>Size</b></th><th><b>Description</b></th></tr>
<tr><th colspan='5'><hr></th></tr>
<tr><td valign='top'><img src='{{.Icon}}' alt='[DIR]'></td>
<td><a href='{{.Parent}}'>Parent Directory</a></td><td>&nbsp;</td>
<td align='right'>  - </td><td>&nbsp;</td></tr>
{{- range .Rows}}
<tr><td valign='top'><img src='{{$.Icon}}' alt='{{.Alt}}'></td><td>
<a href='{{.Href}}'>{{.Name}}</a></td>
<td align='right'>{{.Modified}}</td>
<td align='right'>{{.Size}}</td><td>&nbsp;</td></tr>
{{- end}}
<tr><th colspan='5'><hr></th></tr></table>`))

type listingPage struct {
	Dir    string
	Icon   template.URL
	Parent string
	Rows   []listingRow
}

type listingRow struct {
	Alt      string
	Href     string
	Name     string
	Modified string
	Size     string
}

func renderListing(route, dirPath string, entries []entity.DirEntry) string {
	page := listingPage{
		Dir:    dirPath,
		Icon:   template.URL(_blankIcon),
		Parent: encodePath(route + path.Dir(path.Clean(dirPath))),
		Rows:   make([]listingRow, 0, len(entries)),
	}

	for _, entry := range entries {
		row := listingRow{
			Alt:      entryAlt(entry),
			Href:     encodePath(route + path.Join(dirPath, entry.Name)),
			Name:     entry.Name,
			Modified: formatDate(entry.ModTime),
			Size:     formatSize(entry.Size),
		}
		if entry.IsDir {
			row.Size = formatSize(0)
		}
		page.Rows = append(page.Rows, row)
	}

	var buf bytes.Buffer
	if err := _listingTemplate.Execute(&buf, page); err != nil {
		// The template is static and every field is a string.
		panic(err)
	}
	buf.WriteString(_footer)
	return buf.String()
}

func entryAlt(entry entity.DirEntry) string {
	switch {
	case entry.IsDir:
		return "[DIR]"
	case IsImage(entry.Name):
		return "[IMG]"
	case IsMedia(entry.Name):
		return "[MOV]"
	default:
		return "[TXT]"
	}
}

// encodePath escapes a path the way encodeURI does: separators are kept, spaces and the like are escaped.
func encodePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}

// formatDate renders D-Mon-YYYY H:M without zero padding, e.g. 20-Apr-2024 17:14.
func formatDate(t time.Time) string {
	return fmt.Sprintf("%d-%s-%d %d:%d", t.Day(), t.Month().String()[:3], t.Year(), t.Hour(), t.Minute())
}

// formatSize abbreviates a byte count with the largest unit not exceeding it; zero renders as "-".
func formatSize(size int64) string {
	if size <= 0 {
		return "-"
	}
	i := 0
	for i < len(_sizeUnits)-1 && size >= int64(1)<<(10*(i+1)) {
		i++
	}
	return fmt.Sprintf("%d%s", int64(math.Round(float64(size)/math.Pow(1024, float64(i)))), _sizeUnits[i])
}
