package ratelimit

import "testing"

func TestAllowConsumesTokens(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4", 3, 0) {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if l.Allow("1.2.3.4", 3, 0) {
		t.Fatalf("expected bucket exhausted")
	}
}

func TestAllowIsolatesKeys(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) {
		t.Fatalf("first key should pass")
	}
	if l.Allow("a", 1, 0) {
		t.Fatalf("first key should be exhausted")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatalf("second key should have its own bucket")
	}
}
