package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestGenerateAndValidate(t *testing.T) {
	t.Parallel()
	svc := NewJWTService("test-secret", 1)
	userID := uuid.New()

	token, err := svc.Generate(userID, "artist@example.com", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID: got %s, want %s", claims.UserID, userID)
	}
	if claims.Email != "artist@example.com" {
		t.Errorf("Email: got %s", claims.Email)
	}
	if claims.Role != "user" {
		t.Errorf("Role: got %s", claims.Role)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	t.Parallel()
	issuer := NewJWTService("secret-a", 1)
	verifier := NewJWTService("secret-b", 1)

	token, err := issuer.Generate(uuid.New(), "a@example.com", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := verifier.Validate(token); err == nil {
		t.Error("token signed with another secret validated")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	t.Parallel()
	svc := NewJWTService("test-secret", -1)

	token, err := svc.Generate(uuid.New(), "a@example.com", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := svc.Validate(token); err == nil {
		t.Error("expired token validated")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	t.Parallel()
	svc := NewJWTService("test-secret", 1)
	if _, err := svc.Validate("not.a.token"); err == nil {
		t.Error("garbage token validated")
	}
}
