package controller

import (
	liveedit "github.com/uber/live-preview/src/lpd/controller/live-edit"
	liveprotocol "github.com/uber/live-preview/src/lpd/controller/live-protocol"
	"github.com/uber/live-preview/src/lpd/controller/transport"
	virtualserver "github.com/uber/live-preview/src/lpd/controller/virtual-server"
	"github.com/uber/live-preview/src/lpd/controller/watcher"
	"github.com/uber/live-preview/src/lpd/repository/document"
	"go.uber.org/fx"
)

// Module provides the live preview controllers.
var Module = fx.Options(
	transport.Module,
	fx.Provide(virtualserver.New),
	fx.Provide(liveedit.New),
	fx.Provide(liveprotocol.New),
	fx.Provide(watcher.New),
	// Open documents are served with their unsaved edits.
	fx.Provide(func(r document.Repository) virtualserver.Overlay { return r }),
)
