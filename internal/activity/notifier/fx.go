package notifier

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("activity.notifier",
	fx.Provide(NewWebhookClient),
	fx.Provide(New),
	fx.Invoke(RunNotifier),
)

func RunNotifier(lc fx.Lifecycle, n *Notifier) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go n.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
