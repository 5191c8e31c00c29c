package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyGuardrailDefaults(t *testing.T) {
	defaults := DefaultGuardrails()

	var cfg Guardrails
	applyGuardrailDefaults(&cfg, defaults)
	assert.Equal(t, defaults.SideEffectTimeout, cfg.SideEffectTimeout)
	assert.Equal(t, defaults.LockTTL, cfg.LockTTL)
	assert.Equal(t, defaults.LockAttempts, cfg.LockAttempts)
	assert.Equal(t, defaults.LockRetryDelay, cfg.LockRetryDelay)
	assert.Zero(t, cfg.MaxReconcileBatch)

	cfg = Guardrails{SideEffectTimeout: 5 * time.Second, MaxReconcileBatch: 3}
	applyGuardrailDefaults(&cfg, defaults)
	assert.Equal(t, 5*time.Second, cfg.SideEffectTimeout)
	assert.Equal(t, 3, cfg.MaxReconcileBatch)
}

func TestValidateGuardrails(t *testing.T) {
	valid := DefaultGuardrails()
	assert.NoError(t, validateGuardrails(valid))

	negativeBatch := valid
	negativeBatch.MaxReconcileBatch = -1
	assert.Error(t, validateGuardrails(negativeBatch))

	zeroTTL := valid
	zeroTTL.LockTTL = 0
	assert.Error(t, validateGuardrails(zeroTTL))
}

func TestStaticGuardrails(t *testing.T) {
	pinned := Guardrails{
		SideEffectTimeout: time.Second,
		MaxReconcileBatch: 7,
		LockTTL:           time.Minute,
		LockAttempts:      2,
		LockRetryDelay:    time.Millisecond,
	}
	holder := StaticGuardrails(pinned)
	assert.Equal(t, pinned, holder.Get())
}
