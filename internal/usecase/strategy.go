package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arklim/storefront-auth/internal/core/domain"
)

// StrategyResult is the outcome of a strategy run. A nil User with an empty Reason is a plain rejection.
type StrategyResult struct {
	User   *domain.User
	Reason string
}

// AuthenticationStrategy verifies one credential shape.
type AuthenticationStrategy interface {
	Name() string
	Authenticate(ctx context.Context, reqCtx domain.RequestContext, data json.RawMessage) (StrategyResult, error)
}

// StrategySet lists the strategy implementations available per API surface.
type StrategySet struct {
	Admin []AuthenticationStrategy
	Shop  []AuthenticationStrategy
}

// StrategyRegistry resolves strategies by API surface and method name.
// It is built once at startup and never mutated afterwards.
type StrategyRegistry struct {
	byAPI      map[domain.APIType]map[string]AuthenticationStrategy
	configured map[domain.APIType][]string
}

// NewStrategyRegistry keeps, per surface, only the implementations named in configuration.
// A configured name without an implementation is a startup error.
func NewStrategyRegistry(adminNames, shopNames []string, available StrategySet) (*StrategyRegistry, error) {
	registry := &StrategyRegistry{
		byAPI:      make(map[domain.APIType]map[string]AuthenticationStrategy, 2),
		configured: make(map[domain.APIType][]string, 2),
	}

	if err := registry.register(domain.APITypeAdmin, adminNames, available.Admin); err != nil {
		return nil, err
	}
	if err := registry.register(domain.APITypeShop, shopNames, available.Shop); err != nil {
		return nil, err
	}

	return registry, nil
}

func (r *StrategyRegistry) register(apiType domain.APIType, names []string, implementations []AuthenticationStrategy) error {
	byName := make(map[string]AuthenticationStrategy, len(implementations))
	for _, strategy := range implementations {
		if strategy == nil {
			continue
		}
		byName[strategy.Name()] = strategy
	}

	selected := make(map[string]AuthenticationStrategy, len(names))
	configured := make([]string, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, dup := selected[name]; dup {
			continue
		}
		strategy, ok := byName[name]
		if !ok {
			return fmt.Errorf("%s strategy %q has no implementation", apiType, name)
		}
		selected[name] = strategy
		configured = append(configured, name)
	}

	if len(configured) == 0 {
		return fmt.Errorf("no authentication strategies configured for %s api", apiType)
	}

	r.byAPI[apiType] = selected
	r.configured[apiType] = configured
	return nil
}

// Resolve returns the strategy configured for the surface under the given method name.
func (r *StrategyRegistry) Resolve(apiType domain.APIType, method string) (AuthenticationStrategy, error) {
	if strategy, ok := r.byAPI[apiType][method]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("%w: %q on %s api", ErrStrategyNotRecognized, method, apiType)
}

// Configured returns the strategy names of the surface in configuration order.
func (r *StrategyRegistry) Configured(apiType domain.APIType) []string {
	names := r.configured[apiType]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// IsConfigured reports whether the surface has the named strategy.
func (r *StrategyRegistry) IsConfigured(apiType domain.APIType, method string) bool {
	_, ok := r.byAPI[apiType][method]
	return ok
}
