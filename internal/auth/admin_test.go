package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestValidateSecret(t *testing.T) {
	if err := ValidateSecret("short"); err == nil {
		t.Fatal("expected short secret to fail")
	}
	if err := ValidateSecret("long-enough"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdminVerifier(t *testing.T) {
	v, err := newAdminVerifier("s3cret-admin-key", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if !v.Verify("s3cret-admin-key") {
		t.Fatal("expected secret to verify")
	}
	for _, candidate := range []string{"", "wrong", "s3cret-admin-key ", "S3CRET-ADMIN-KEY"} {
		if v.Verify(candidate) {
			t.Fatalf("expected %q to be rejected", candidate)
		}
	}
}

func TestAdminVerifierLongSecret(t *testing.T) {
	secret := strings.Repeat("a", 100)
	v, err := newAdminVerifier(secret, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if !v.Verify(secret) {
		t.Fatal("expected long secret to verify")
	}
	if v.Verify(strings.Repeat("a", 72) + strings.Repeat("b", 28)) {
		t.Fatal("expected secrets sharing a 72-byte prefix to differ")
	}
}

func TestAdminVerifierDisabled(t *testing.T) {
	v, err := NewAdminVerifier("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Fatal("expected nil verifier for empty secret")
	}
	if v.Verify("anything") {
		t.Fatal("expected nil verifier to reject")
	}

	if _, err := NewAdminVerifier("short"); err == nil {
		t.Fatal("expected short secret to fail")
	}
}
