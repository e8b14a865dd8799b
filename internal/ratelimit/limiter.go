package ratelimit

import "time"

// LimitConfig allows at most Max requests per Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// Policy maps each scope to the limits enforced for it. A request is rejected when any
// limit of any of its scopes is exceeded.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// PolicyBuilder assembles a Policy.
type PolicyBuilder struct {
	policy *Policy
}

// NewPolicyBuilder starts an empty policy.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{policy: &Policy{Limits: make(map[Scope][]LimitConfig)}}
}

// AddLimit allows max requests per window in scope, in addition to any limits the
// scope already has.
func (b *PolicyBuilder) AddLimit(scope Scope, maxRequests int64, window time.Duration) *PolicyBuilder {
	b.policy.Limits[scope] = append(b.policy.Limits[scope], LimitConfig{Window: window, Max: maxRequests})

	return b
}

// Build returns the assembled policy.
func (b *PolicyBuilder) Build() *Policy {
	return b.policy
}

// DefaultPolicy returns the limits the server starts with.
func DefaultPolicy() *Policy {
	return NewPolicy(0, 0, 0)
}

// NewPolicy builds the server policy from per-minute budgets. Zero budgets use the
// defaults.
func NewPolicy(redirectPerMinute, readPerMinute, writePerMinute int64) *Policy {
	return NewPolicyBuilder().
		AddLimit(ScopeGlobal, 100, time.Second).
		AddLimit(ScopeGlobal, 3000, time.Minute).
		AddLimit(ScopeRedirect, orDefault(redirectPerMinute, 1200), time.Minute).
		AddLimit(ScopeRead, 20, time.Second).
		AddLimit(ScopeRead, orDefault(readPerMinute, 600), time.Minute).
		AddLimit(ScopeWrite, 5, time.Second).
		AddLimit(ScopeWrite, orDefault(writePerMinute, 60), time.Minute).
		Build()
}

func orDefault(v, fallback int64) int64 {
	if v > 0 {
		return v
	}

	return fallback
}
