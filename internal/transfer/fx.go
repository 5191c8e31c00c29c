package transfer

import (
	"github.com/storelane/storelane/internal/transfer/repository"
	"github.com/storelane/storelane/internal/transfer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transfer",
	fx.Provide(repository.Provide),
	fx.Provide(service.Provide),
)
