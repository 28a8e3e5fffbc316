package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background(), Options{})
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_DefaultPolicy(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background(), Options{BlockedDomains: []string{"mailinator.com", " "}})
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	tests := []struct {
		name       string
		in         RegistrationInput
		allowed    bool
		wantReason string
	}{
		{"ok", RegistrationInput{Email: "a@x.com", Username: "alice"}, true, ""},
		{"blocked domain", RegistrationInput{Email: "a@Mailinator.com", Username: "alice"}, false, "email domain mailinator.com is not accepted"},
		{"empty username", RegistrationInput{Email: "a@x.com", Username: "  "}, false, "username is required"},
		{"malformed email", RegistrationInput{Email: "nobody", Username: "alice"}, false, "email is malformed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := e.EvaluateRegistration(context.Background(), tc.in)
			if err != nil {
				t.Fatalf("EvaluateRegistration: %v", err)
			}
			if d.Allowed != tc.allowed {
				t.Fatalf("Allowed = %v, want %v (reasons %v)", d.Allowed, tc.allowed, d.Reasons)
			}
			if tc.wantReason != "" && !contains(d.Reasons, tc.wantReason) {
				t.Errorf("Reasons = %v, want %q", d.Reasons, tc.wantReason)
			}
		})
	}
}

func TestOPAEvaluator_CustomPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registration.rego")
	policy := `package auth_gateway.registration

default allow := false

allow if endswith(input.email, "@corp.example")
`
	if err := os.WriteFile(path, []byte(policy), 0o600); err != nil {
		t.Fatal(err)
	}
	src, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("LoadPolicyFile: %v", err)
	}
	e, err := NewOPAEvaluator(context.Background(), Options{Policy: src})
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	d, _ := e.EvaluateRegistration(context.Background(), RegistrationInput{Email: "a@corp.example", Username: "a"})
	if !d.Allowed {
		t.Error("corp address should be allowed")
	}
	d, _ = e.EvaluateRegistration(context.Background(), RegistrationInput{Email: "a@x.com", Username: "a"})
	if d.Allowed || len(d.Reasons) != 1 {
		t.Errorf("external address: %+v, want denied with a generic reason", d)
	}
}

func TestOPAEvaluator_FailsOpenOnEvalError(t *testing.T) {
	policy := `package auth_gateway.registration

allow := true if input.username
allow := false if input.email
`
	e, err := NewOPAEvaluator(context.Background(), Options{Policy: policy})
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	d, err := e.EvaluateRegistration(context.Background(), RegistrationInput{Email: "a@x.com", Username: "alice"})
	if err != nil {
		t.Fatalf("EvaluateRegistration: %v", err)
	}
	if !d.Allowed {
		t.Error("evaluation error should fail open")
	}
}

func TestNewOPAEvaluator_BadPolicy(t *testing.T) {
	_, err := NewOPAEvaluator(context.Background(), Options{Policy: "package x\n\nallow if {"})
	if err == nil {
		t.Fatal("invalid Rego should fail to compile")
	}
}

func TestLoadPolicyFile(t *testing.T) {
	if src, err := LoadPolicyFile(""); err != nil || src != "" {
		t.Errorf("empty path: %q, %v", src, err)
	}
	if _, err := LoadPolicyFile(filepath.Join(t.TempDir(), "missing.rego")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestEmailDomain(t *testing.T) {
	if got := EmailDomain("a@B.Com"); got != "b.com" {
		t.Errorf("EmailDomain = %q", got)
	}
	if got := EmailDomain("nobody"); got != "" {
		t.Errorf("EmailDomain = %q, want empty", got)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.Contains(v, s) {
			return true
		}
	}
	return false
}
