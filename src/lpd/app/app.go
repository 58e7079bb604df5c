package app

import (
	"context"
	"time"

	"github.com/uber-go/tally"
	"github.com/uber/live-preview/src/lpd/handler"
	"github.com/uber/live-preview/src/lpd/internal/clock"
	"github.com/uber/live-preview/src/lpd/internal/core"
	"github.com/uber/live-preview/src/lpd/internal/formatter"
	"github.com/uber/live-preview/src/lpd/internal/fs"
	"github.com/uber/live-preview/src/lpd/internal/httpfx"
	"github.com/uber/live-preview/src/lpd/internal/serverinfofile"
	"go.uber.org/fx"
)

// Module defines the lpd application module.
var Module = fx.Options(
	handler.Module, // inbounds
	httpfx.Module,
	fs.Module,
	serverinfofile.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(clock.New),
	fx.Provide(formatter.New),
	fx.Provide(func(lc fx.Lifecycle) tally.Scope {
		rs, closer := tally.NewRootScope(tally.ScopeOptions{
			Tags: map[string]string{
				"service": "lpd",
			},
		}, 1*time.Second)

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})

		return rs
	}),
	fx.Decorate(decorateEnvContext),
	fx.Decorate(decorateConfigProvider),
	fx.Provide(func() Context {
		return Context{
			Environment:        EnvLocal,
			RuntimeEnvironment: EnvLocal,
		}
	}),
)
