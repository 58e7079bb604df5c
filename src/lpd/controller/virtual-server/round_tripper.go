package virtualserver

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/uber/live-preview/src/lpd/entity"
)

// RequestPath maps an HTTP request under route to a project path and download flag.
// ok is false when the request is outside the route.
func RequestPath(route string, r *http.Request) (urlPath string, download bool, ok bool) {
	p := r.URL.Path
	if p != route && !strings.HasPrefix(p, strings.TrimSuffix(route, "/")+"/") {
		return "", false, false
	}
	urlPath = strings.TrimPrefix(p, strings.TrimSuffix(route, "/"))
	if urlPath == "" {
		urlPath = "/"
	}
	return urlPath, r.URL.Query().Has("download"), true
}

type roundTripper struct {
	controller Controller
}

// NewRoundTripper answers requests for the preview route in process, without opening a socket.
// It lets an http.Client fetch preview resources exactly as a browser would.
func NewRoundTripper(c Controller) http.RoundTripper {
	return roundTripper{controller: c}
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	urlPath, download, ok := RequestPath(rt.controller.Route(), req)
	if !ok {
		return nil, fmt.Errorf("%s is outside the preview route %s", req.URL.Path, rt.controller.Route())
	}

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return toHTTPResponse(req, entity.Response{
			Status:     http.StatusMethodNotAllowed,
			StatusText: http.StatusText(http.StatusMethodNotAllowed),
			Headers:    http.Header{"Allow": []string{"GET, HEAD"}},
		}), nil
	}

	return toHTTPResponse(req, rt.controller.Serve(req.Context(), urlPath, download)), nil
}

func toHTTPResponse(req *http.Request, resp entity.Response) *http.Response {
	headers := resp.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}

	body := resp.Body
	if req.Method == http.MethodHead {
		body = nil
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.Status, resp.StatusText),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        headers,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(resp.Body)),
		Request:       req,
	}
}
