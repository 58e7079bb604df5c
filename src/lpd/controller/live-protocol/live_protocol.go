// Package liveprotocol implements the host side of the live preview protocol: it keeps track of
// connected previews, routes their edit requests to the live edit bridge and pushes reloads back.
package liveprotocol

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/uber-go/tally"
	liveedit "github.com/uber/live-preview/src/lpd/controller/live-edit"
	"github.com/uber/live-preview/src/lpd/controller/transport"
	virtualserver "github.com/uber/live-preview/src/lpd/controller/virtual-server"
	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/internal/clock"
	"github.com/uber/live-preview/src/lpd/mapper"
	"github.com/uber/live-preview/src/lpd/repository/connection"
	"github.com/uber/live-preview/src/lpd/repository/document"
	"go.lsp.dev/uri"
	"go.uber.org/atomic"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	_nameKey       = "live-protocol"
	_liveEditKey   = "liveEdit"
	_errNotifyPeer = "notifying peer %s: %w"
)

// _liveExtensions are the page types that are instrumented for live editing.
var _liveExtensions = map[string]struct{}{
	".html":  {},
	".htm":   {},
	".xhtml": {},
}

// Controller is the host side of the live preview protocol.
type Controller interface {
	transport.EventHandler

	// Reload asks the listed peers, or every peer when clientIDs is empty, to reload their page.
	Reload(ctx context.Context, clientIDs []string) error
	// TriggerFn asks the listed peers to run a named function. Results are not awaited.
	TriggerFn(ctx context.Context, name string, args any, clientIDs []string) error
	// Connections returns the connected peers, oldest first.
	Connections(ctx context.Context) ([]*entity.ClientConnection, error)
	// CloseAll ends every connection as if each peer had announced CLOSE.
	CloseAll(ctx context.Context) error
}

// Params are inbound parameters to initialize a new live protocol controller.
type Params struct {
	fx.In

	Config      config.Provider
	Logger      *zap.SugaredLogger
	Stats       tally.Scope
	Lifecycle   fx.Lifecycle
	Clock       clock.Clock
	Host        transport.Host
	Server      virtualserver.Controller
	Connections connection.Repository
	Documents   document.Repository
	Bridge      liveedit.Controller
}

type controller struct {
	autoSave    bool
	route       string
	logger      *zap.SugaredLogger
	stats       tally.Scope
	clock       clock.Clock
	host        transport.Host
	connections connection.Repository
	documents   document.Repository
	bridge      liveedit.Controller

	requestID atomic.Int64

	// mu serializes switching the live document with the edits applied to it.
	mu sync.Mutex
}

// New creates the live protocol controller. It starts listening on the host when the application starts
// and closes every connection when it stops.
func New(p Params) (Controller, error) {
	var cfg liveedit.Config
	if err := p.Config.Get(_liveEditKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _liveEditKey, err)
	}

	c := &controller{
		autoSave:    cfg.AutoSave,
		route:       p.Server.Route(),
		logger:      p.Logger.With("plugin", _nameKey),
		stats:       p.Stats.SubScope("live_protocol"),
		clock:       p.Clock,
		host:        p.Host,
		connections: p.Connections,
		documents:   p.Documents,
		bridge:      p.Bridge,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return c.host.Start(ctx, c)
		},
		OnStop: func(ctx context.Context) error {
			return multierr.Append(c.CloseAll(ctx), c.host.Close(ctx))
		},
	})
	return c, nil
}

func (c *controller) OnConnect(ctx context.Context, clientID, pageURL string) {
	conn := &entity.ClientConnection{ClientID: clientID, URL: pageURL, ConnectedAt: c.clock.Now()}
	if err := c.connections.Set(ctx, conn); err != nil {
		c.logger.Warnw("recording connection failed", zap.String("clientID", clientID), zap.Error(err))
		return
	}
	c.logger.Infow("peer connected", zap.String("clientID", clientID), zap.String("url", pageURL))

	c.goLive(ctx, pageURL)

	if err := c.host.Send(ctx, []string{clientID}, mapper.ReadyMessage()); err != nil {
		c.logger.Warnw("sending ready failed", zap.Error(fmt.Errorf(_errNotifyPeer, clientID, err)))
	}
}

// goLive opens the page a peer is showing and makes it the target of edits.
func (c *controller) goLive(ctx context.Context, pageURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openLive(ctx, pageURL)
}

// openLive opens the document behind pageURL and makes it live. Callers hold c.mu.
func (c *controller) openLive(ctx context.Context, pageURL string) (uri.URI, bool) {
	docPath, ok := c.documentPath(pageURL)
	if !ok {
		c.logger.Debugw("page is not a live document", zap.String("url", pageURL))
		return "", false
	}

	u, err := c.documents.Open(ctx, docPath)
	if err != nil {
		c.logger.Warnw("opening live document failed", zap.String("path", docPath), zap.Error(err))
		return "", false
	}
	if err := c.documents.SetLive(ctx, u); err != nil {
		c.logger.Warnw("setting live document failed", zap.String("uri", string(u)), zap.Error(err))
		return "", false
	}
	return u, true
}

// documentPath maps a page url under the preview route to an editable project path.
func (c *controller) documentPath(pageURL string) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	docPath, _, ok := virtualserver.RequestPath(c.route, &http.Request{URL: u})
	if !ok {
		return "", false
	}
	if _, live := _liveExtensions[strings.ToLower(path.Ext(docPath))]; !live {
		return "", false
	}
	return docPath, true
}

func (c *controller) OnMessage(ctx context.Context, clientID, message string) {
	msg, err := mapper.DecodeLiveMessage(message)
	if err != nil {
		c.stats.Counter("malformed_messages").Inc(1)
		c.logger.Warnw("dropping peer message", zap.String("clientID", clientID), zap.Error(err))
		return
	}

	intent, ok := mapper.LiveMessageToEditIntent(msg)
	if !ok {
		c.logger.Debugw("ignoring peer message", zap.String("clientID", clientID), zap.String("method", msg.Method))
		return
	}

	if !c.edit(ctx, clientID, intent) {
		return
	}
	if err := c.Reload(ctx, nil); err != nil {
		c.logger.Warnw("reload after edit failed", zap.Error(err))
	}
}

// edit applies an intent to the document the sending peer is showing. It reports whether the edit
// was applied.
func (c *controller) edit(ctx context.Context, clientID string, intent entity.EditIntent) bool {
	conn, err := c.connections.Get(ctx, clientID)
	if err != nil {
		c.logger.Debugw("ignoring edit from unknown peer", zap.String("clientID", clientID), zap.Error(err))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.openLive(ctx, conn.URL)
	if !ok {
		return false
	}
	if err := c.bridge.Apply(ctx, intent); err != nil {
		return false
	}
	if n := c.documents.RetagLive(ctx); n > 0 {
		c.logger.Debugw("tagged new elements", zap.Int("count", n))
	}

	if c.autoSave {
		if err := c.documents.Save(ctx, u); err != nil {
			c.logger.Warnw("saving live document failed", zap.String("uri", string(u)), zap.Error(err))
		}
	}
	return true
}

func (c *controller) OnClose(ctx context.Context, clientID string) {
	if err := c.connections.Delete(ctx, clientID); err != nil {
		c.logger.Warnw("removing connection failed", zap.String("clientID", clientID), zap.Error(err))
		return
	}
	c.logger.Infow("peer disconnected", zap.String("clientID", clientID))
}

func (c *controller) Reload(ctx context.Context, clientIDs []string) error {
	c.stats.Counter("reloads").Inc(1)
	return c.host.Send(ctx, clientIDs, mapper.ReloadMessage(c.requestID.Inc()))
}

func (c *controller) TriggerFn(ctx context.Context, name string, args any, clientIDs []string) error {
	message, err := mapper.ExecFnMessage(c.requestID.Inc(), name, args)
	if err != nil {
		return err
	}
	return c.host.Send(ctx, clientIDs, message)
}

func (c *controller) Connections(ctx context.Context) ([]*entity.ClientConnection, error) {
	return c.connections.GetAll(ctx)
}

func (c *controller) CloseAll(ctx context.Context) error {
	conns, err := c.connections.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, conn := range conns {
		c.OnClose(ctx, conn.ClientID)
	}
	return nil
}
