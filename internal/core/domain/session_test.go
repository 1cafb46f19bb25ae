package domain

import (
	"testing"
	"time"
)

func TestSessionIsActive(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if !(Session{ExpiresAt: now.Add(time.Second)}).IsActive(now) {
		t.Fatalf("expected session active before expiry")
	}
	if (Session{ExpiresAt: now}).IsActive(now) {
		t.Fatalf("expected session inactive at expiry")
	}
	if (Session{ExpiresAt: now.Add(time.Hour), Invalidated: true}).IsActive(now) {
		t.Fatalf("expected invalidated session inactive")
	}
}

func TestSessionHasActiveOrder(t *testing.T) {
	empty := ""
	order := "order-1"

	var nilSession *Session
	if nilSession.HasActiveOrder() {
		t.Fatalf("nil session has no order")
	}
	if (&Session{ActiveOrderID: &empty}).HasActiveOrder() {
		t.Fatalf("blank order id is not an order")
	}
	if !(&Session{ActiveOrderID: &order}).HasActiveOrder() {
		t.Fatalf("expected active order")
	}
}

func TestDegradationPolicy(t *testing.T) {
	if ParseDegradationPolicyMode(" STRICT ") != DegradationPolicyModeStrict {
		t.Fatalf("expected strict mode")
	}
	if ParseDegradationPolicyMode("anything") != DegradationPolicyModeLenient {
		t.Fatalf("expected lenient fallback")
	}

	strict := NewDegradationPolicy(DegradationPolicyModeStrict)
	if strict.AllowsFallback(DegradationReasonCacheUnavailable) {
		t.Fatalf("strict policy must not fall back on outage")
	}
	if !strict.AllowsFallback(DegradationReasonCacheCorrupt) {
		t.Fatalf("corrupt entries always fall back")
	}

	lenient := NewDegradationPolicy("")
	if lenient.Mode() != DegradationPolicyModeLenient || !lenient.AllowsFallback(DegradationReasonCacheUnavailable) {
		t.Fatalf("expected lenient default")
	}
}
