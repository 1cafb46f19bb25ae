package domain

import "strings"

// DegradationPolicyMode decides how session resolution behaves when the session cache misbehaves.
type DegradationPolicyMode string

const (
	// DegradationPolicyModeLenient falls back to the session store when the cache cannot be read.
	DegradationPolicyModeLenient DegradationPolicyMode = "lenient"
	// DegradationPolicyModeStrict fails the lookup instead.
	DegradationPolicyModeStrict DegradationPolicyMode = "strict"
)

// DegradationReason names the failure a fallback decision is made for.
type DegradationReason string

const (
	// DegradationReasonCacheUnavailable indicates the session cache returned an error.
	DegradationReasonCacheUnavailable DegradationReason = "session_cache_unavailable"
	// DegradationReasonCacheCorrupt indicates a cached entry could not be decoded.
	DegradationReasonCacheCorrupt DegradationReason = "session_cache_corrupt"
)

// DegradationPolicy is the configured answer to a degraded session cache.
type DegradationPolicy struct {
	mode DegradationPolicyMode
}

// NewDegradationPolicy defaults to lenient for anything but strict.
func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	if mode != DegradationPolicyModeStrict {
		mode = DegradationPolicyModeLenient
	}
	return DegradationPolicy{mode: mode}
}

// ParseDegradationPolicyMode normalises a configuration value.
func ParseDegradationPolicyMode(value string) DegradationPolicyMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DegradationPolicyModeStrict):
		return DegradationPolicyModeStrict
	default:
		return DegradationPolicyModeLenient
	}
}

// Mode returns the underlying policy mode.
func (p DegradationPolicy) Mode() DegradationPolicyMode {
	return p.mode
}

// IsStrict indicates whether the policy rejects degraded states.
func (p DegradationPolicy) IsStrict() bool {
	return p.mode == DegradationPolicyModeStrict
}

// AllowsFallback reports whether resolution may continue against the session store.
// A corrupt entry is always skipped since the store holds the authoritative copy.
func (p DegradationPolicy) AllowsFallback(reason DegradationReason) bool {
	if reason == DegradationReasonCacheCorrupt {
		return true
	}
	return !p.IsStrict()
}
