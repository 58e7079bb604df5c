// Package preview serves the virtual server over HTTP.
package preview

import (
	"io"
	"net/http"
	"strconv"

	virtualserver "github.com/uber/live-preview/src/lpd/controller/virtual-server"
	"github.com/uber/live-preview/src/lpd/internal/httpfx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Handler answers preview requests.
type Handler http.Handler

// Params are the dependencies of the preview handler.
type Params struct {
	fx.In

	HTTP   httpfx.HTTPModule
	Server virtualserver.Controller
	Logger *zap.SugaredLogger
}

type handler struct {
	transport http.RoundTripper
	logger    *zap.SugaredLogger
}

// New mounts the virtual server under its route.
func New(p Params) Handler {
	h := &handler{
		transport: virtualserver.NewRoundTripper(p.Server),
		logger:    p.Logger.With("plugin", "preview"),
	}
	p.HTTP.Router().PathPrefix(p.Server.Route()).Handler(h)
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := h.transport.RoundTrip(r)
	if err != nil {
		h.logger.Debugw("request outside the preview", zap.String("path", r.URL.Path), zap.Error(err))
		http.NotFound(w, r)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		w.Header()[key] = values
	}
	if w.Header().Get("Content-Length") == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Debugw("writing preview response failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
}
