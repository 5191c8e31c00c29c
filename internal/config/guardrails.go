package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Guardrails bounds the reconciliation engine. Values are hot-reloadable so
// operators can widen timeouts or shrink batches without a restart.
type Guardrails struct {
	// SideEffectTimeout caps one background side-effect batch end to end.
	SideEffectTimeout time.Duration `mapstructure:"sideEffectTimeout"`
	// MaxReconcileBatch caps how many stores a single reconciliation run
	// will transition. Zero means unlimited.
	MaxReconcileBatch int `mapstructure:"maxReconcileBatch"`
	// LockTTL is the lifetime of the per-owner reconcile lock.
	LockTTL time.Duration `mapstructure:"lockTTL"`
	// LockAttempts is how many times a handler retries a busy lock
	// before giving up and letting the provider redeliver.
	LockAttempts int `mapstructure:"lockAttempts"`
	// LockRetryDelay is the pause between lock attempts.
	LockRetryDelay time.Duration `mapstructure:"lockRetryDelay"`
}

func DefaultGuardrails() Guardrails {
	return Guardrails{
		SideEffectTimeout: 30 * time.Second,
		MaxReconcileBatch: 0,
		LockTTL:           20 * time.Second,
		LockAttempts:      5,
		LockRetryDelay:    200 * time.Millisecond,
	}
}

type GuardrailsHolder struct {
	current atomic.Value // holds Guardrails
}

func NewGuardrailsHolder() (*GuardrailsHolder, error) {
	v := viper.New()

	v.SetConfigName("storelane")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/storelane/config") // Volume-mounted config
	v.AddConfigPath("/etc/storelane")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("STORELANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGuardrails()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("reconciler.sideEffectTimeout", defaults.SideEffectTimeout)
		v.SetDefault("reconciler.maxReconcileBatch", defaults.MaxReconcileBatch)
		v.SetDefault("reconciler.lockTTL", defaults.LockTTL)
		v.SetDefault("reconciler.lockAttempts", defaults.LockAttempts)
		v.SetDefault("reconciler.lockRetryDelay", defaults.LockRetryDelay)
	}

	var cfg Guardrails
	if err := v.UnmarshalKey("reconciler", &cfg); err != nil {
		return nil, err
	}
	applyGuardrailDefaults(&cfg, defaults)
	if err := validateGuardrails(cfg); err != nil {
		return nil, err
	}

	holder := &GuardrailsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Guardrails
		if err := v.UnmarshalKey("reconciler", &updated); err != nil {
			log.Printf("[guardrails] reload failed: %v", err)
			return
		}
		applyGuardrailDefaults(&updated, defaults)
		if err := validateGuardrails(updated); err != nil {
			log.Printf("[guardrails] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[guardrails] reloaded from %s", e.Name)
	})

	return holder, nil
}

// StaticGuardrails returns a holder pinned to the given values, with no file
// watching. Used by tests and one-shot tools.
func StaticGuardrails(cfg Guardrails) *GuardrailsHolder {
	holder := &GuardrailsHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *GuardrailsHolder) Get() Guardrails {
	return h.current.Load().(Guardrails)
}

func applyGuardrailDefaults(cfg *Guardrails, defaults Guardrails) {
	if cfg.SideEffectTimeout == 0 {
		cfg.SideEffectTimeout = defaults.SideEffectTimeout
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	if cfg.LockAttempts == 0 {
		cfg.LockAttempts = defaults.LockAttempts
	}
	if cfg.LockRetryDelay == 0 {
		cfg.LockRetryDelay = defaults.LockRetryDelay
	}
}

func validateGuardrails(cfg Guardrails) error {
	if cfg.SideEffectTimeout <= 0 {
		return errors.New("reconciler.sideEffectTimeout must be positive")
	}
	if cfg.MaxReconcileBatch < 0 {
		return errors.New("reconciler.maxReconcileBatch cannot be negative")
	}
	if cfg.LockTTL <= 0 {
		return errors.New("reconciler.lockTTL must be positive")
	}
	return nil
}
