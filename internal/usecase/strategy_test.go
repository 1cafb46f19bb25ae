package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/arklim/storefront-auth/internal/core/domain"
)

type namedStrategy struct {
	name   string
	result StrategyResult
	err    error
	calls  int
}

func (s *namedStrategy) Name() string { return s.name }

func (s *namedStrategy) Authenticate(context.Context, domain.RequestContext, json.RawMessage) (StrategyResult, error) {
	s.calls++
	return s.result, s.err
}

func TestStrategyRegistry_ResolvesPerSurface(t *testing.T) {
	native := &namedStrategy{name: "native"}
	keycloak := &namedStrategy{name: "keycloak"}

	registry, err := NewStrategyRegistry(
		[]string{"native"},
		[]string{"keycloak", "native"},
		StrategySet{
			Admin: []AuthenticationStrategy{native, keycloak},
			Shop:  []AuthenticationStrategy{native, keycloak},
		},
	)
	if err != nil {
		t.Fatalf("NewStrategyRegistry returned error: %v", err)
	}

	got, err := registry.Resolve(domain.APITypeShop, "keycloak")
	if err != nil || got != keycloak {
		t.Fatalf("expected keycloak on shop, got %v (%v)", got, err)
	}

	if _, err := registry.Resolve(domain.APITypeAdmin, "keycloak"); !errors.Is(err, ErrStrategyNotRecognized) {
		t.Fatalf("expected keycloak to be unknown on admin, got %v", err)
	}
	if _, err := registry.Resolve(domain.APIType("partner"), "native"); !errors.Is(err, ErrStrategyNotRecognized) {
		t.Fatalf("expected unknown surface to fail, got %v", err)
	}
	if errors.Is(ErrStrategyNotRecognized, ErrInvalidCredentials) {
		t.Fatalf("configuration errors must not collapse into invalid credentials")
	}

	if want := []string{"keycloak", "native"}; !reflect.DeepEqual(registry.Configured(domain.APITypeShop), want) {
		t.Fatalf("expected configured order %v, got %v", want, registry.Configured(domain.APITypeShop))
	}

	names := registry.Configured(domain.APITypeShop)
	names[0] = "mutated"
	if registry.Configured(domain.APITypeShop)[0] != "keycloak" {
		t.Fatalf("Configured must return a copy")
	}
}

func TestStrategyRegistry_RejectsUnimplementedNames(t *testing.T) {
	native := &namedStrategy{name: "native"}

	if _, err := NewStrategyRegistry([]string{"native"}, []string{"google"}, StrategySet{
		Admin: []AuthenticationStrategy{native},
		Shop:  []AuthenticationStrategy{native},
	}); err == nil {
		t.Fatalf("expected error for configured strategy without implementation")
	}

	if _, err := NewStrategyRegistry(nil, []string{"native"}, StrategySet{
		Shop: []AuthenticationStrategy{native},
	}); err == nil {
		t.Fatalf("expected error for empty admin strategy list")
	}
}

func TestStrategyRegistry_IgnoresDuplicateAndBlankNames(t *testing.T) {
	native := &namedStrategy{name: "native"}

	registry, err := NewStrategyRegistry([]string{"native", " ", "native"}, []string{"native"}, StrategySet{
		Admin: []AuthenticationStrategy{native},
		Shop:  []AuthenticationStrategy{native},
	})
	if err != nil {
		t.Fatalf("NewStrategyRegistry returned error: %v", err)
	}
	if got := registry.Configured(domain.APITypeAdmin); len(got) != 1 {
		t.Fatalf("expected a single admin strategy, got %v", got)
	}
	if !registry.IsConfigured(domain.APITypeAdmin, "native") || registry.IsConfigured(domain.APITypeAdmin, "keycloak") {
		t.Fatalf("unexpected IsConfigured answers")
	}
}
