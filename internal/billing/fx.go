package billing

import (
	"github.com/storelane/storelane/internal/billing/stripe"
	"github.com/storelane/storelane/internal/billing/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(stripe.NewAdapter),
	fx.Provide(webhook.NewService),
)
