package effects

import "go.uber.org/fx"

var Module = fx.Module("effects",
	fx.Provide(NewIndexNowNotifier),
	fx.Provide(NewSiteCacheInvalidator),
	fx.Provide(NewOrchestrator),
)
