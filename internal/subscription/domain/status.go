package domain

import "strings"

// StatusFromProvider maps the provider's subscription status vocabulary onto
// the internal enum. The mapping is total: an unrecognized value falls back to
// StatusActive so a new provider status never breaks event processing. Callers
// are expected to log the raw value when the fallback fires, because the
// fallback grants access on an unknown condition.
func StatusFromProvider(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active":
		return StatusActive
	case "canceled", "cancelled":
		return StatusCanceled
	case "incomplete":
		return StatusIncomplete
	case "incomplete_expired":
		return StatusIncompleteExpired
	case "past_due":
		return StatusPastDue
	case "trialing":
		return StatusTrialing
	case "unpaid":
		return StatusUnpaid
	default:
		return StatusActive
	}
}

// IsKnownProviderStatus reports whether raw maps without the fallback.
func IsKnownProviderStatus(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "canceled", "cancelled", "incomplete", "incomplete_expired", "past_due", "trialing", "unpaid":
		return true
	default:
		return false
	}
}

// ShouldDeactivate reports whether a status forces the owner's stores offline.
func (s Status) ShouldDeactivate() bool {
	switch s {
	case StatusCanceled, StatusUnpaid, StatusPastDue:
		return true
	default:
		return false
	}
}
