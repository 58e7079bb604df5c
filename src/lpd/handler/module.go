package handler

import (
	controller "github.com/uber/live-preview/src/lpd/controller"
	liveprotocol "github.com/uber/live-preview/src/lpd/controller/live-protocol"
	"github.com/uber/live-preview/src/lpd/controller/watcher"
	"github.com/uber/live-preview/src/lpd/handler/preview"
	"github.com/uber/live-preview/src/lpd/handler/relay"
	"github.com/uber/live-preview/src/lpd/repository/connection"
	"github.com/uber/live-preview/src/lpd/repository/document"
	"go.uber.org/fx"
)

// Module provides the preview server and the live channel into an Fx application.
var Module = fx.Options(
	controller.Module,
	fx.Provide(connection.New),
	fx.Provide(document.New),
	fx.Provide(preview.New),
	fx.Provide(relay.New),
	fx.Invoke(func(h preview.Handler) {}),
	fx.Invoke(func(h relay.Handler) {}),
	fx.Invoke(func(c liveprotocol.Controller) {}),
	fx.Invoke(func(c watcher.Controller) {}),
)
