package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "storefront-auth" || cfg.App.Port != 3000 {
		t.Fatalf("unexpected app settings %+v", cfg.App)
	}
	if cfg.Postgres.Schema != "storefront" {
		t.Fatalf("unexpected schema %q", cfg.Postgres.Schema)
	}
	if len(cfg.Auth.ShopStrategies) != 1 || cfg.Auth.ShopStrategies[0] != "native" {
		t.Fatalf("unexpected shop strategies %v", cfg.Auth.ShopStrategies)
	}
	if !cfg.Auth.RequireVerification {
		t.Fatalf("verification must be required by default")
	}
	if cfg.Auth.SessionDuration != 365*24*time.Hour {
		t.Fatalf("unexpected session duration %v", cfg.Auth.SessionDuration)
	}
	if cfg.Auth.TokenMethod != TokenMethodCookie || cfg.Auth.AuthTokenHeader != "auth-token" {
		t.Fatalf("unexpected token transport %+v", cfg.Auth)
	}
	if cfg.Kafka.Enabled {
		t.Fatalf("kafka must be opt-in")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("AUTH_AUTH_SHOP_STRATEGIES", "native,external")
	t.Setenv("AUTH_AUTH_TOKEN_METHOD", "bearer")
	t.Setenv("AUTH_AUTH_SESSION_DURATION", "2h")
	t.Setenv("AUTH_AUTH_REQUIRE_VERIFICATION", "false")
	t.Setenv("KAFKA_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got := strings.Join(cfg.Auth.ShopStrategies, ","); got != "native,external" {
		t.Fatalf("unexpected shop strategies %q", got)
	}
	if cfg.Auth.TokenMethod != TokenMethodBearer {
		t.Fatalf("unexpected token method %q", cfg.Auth.TokenMethod)
	}
	if cfg.Auth.SessionDuration != 2*time.Hour {
		t.Fatalf("unexpected session duration %v", cfg.Auth.SessionDuration)
	}
	if cfg.Auth.RequireVerification {
		t.Fatalf("expected verification disabled")
	}
	if !cfg.Kafka.Enabled {
		t.Fatalf("expected unprefixed env to be honoured")
	}
}

func TestValidate(t *testing.T) {
	valid := AppConfig{Auth: AuthSettings{
		AdminStrategies: []string{"native"},
		ShopStrategies:  []string{"native"},
		TokenMethod:     TokenMethodCookie,
		SessionDuration: time.Hour,
	}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(c *AppConfig){
		"no admin strategies":  func(c *AppConfig) { c.Auth.AdminStrategies = nil },
		"no shop strategies":   func(c *AppConfig) { c.Auth.ShopStrategies = []string{} },
		"unknown token method": func(c *AppConfig) { c.Auth.TokenMethod = "query" },
		"zero duration":        func(c *AppConfig) { c.Auth.SessionDuration = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			cfg.Auth.AdminStrategies = append([]string(nil), valid.Auth.AdminStrategies...)
			cfg.Auth.ShopStrategies = append([]string(nil), valid.Auth.ShopStrategies...)
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
