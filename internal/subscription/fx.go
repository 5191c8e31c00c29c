package subscription

import (
	"github.com/storelane/storelane/internal/subscription/repository"
	"github.com/storelane/storelane/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription",
	fx.Provide(repository.Provide),
	fx.Provide(service.Provide),
)
