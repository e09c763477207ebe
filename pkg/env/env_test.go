package env

import "testing"

func TestGetTrimsAndFallsBack(t *testing.T) {
	t.Setenv("CRM_TEST_VALUE", "  ")
	if got := Get("CRM_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
	t.Setenv("CRM_TEST_VALUE", " set ")
	if got := Get("CRM_TEST_VALUE", "fallback"); got != "set" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestFirstPicksEarliestNonBlank(t *testing.T) {
	t.Setenv("CRM_TEST_A", "")
	t.Setenv("CRM_TEST_B", "b")
	t.Setenv("CRM_TEST_C", "c")
	if got, ok := First("CRM_TEST_A", "CRM_TEST_B", "CRM_TEST_C"); !ok || got != "b" {
		t.Fatalf("expected b, got %q (%v)", got, ok)
	}
	if _, ok := First("CRM_TEST_A"); ok {
		t.Fatal("expected no value")
	}
}
