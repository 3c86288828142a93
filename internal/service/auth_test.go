package service_test

import (
	"testing"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/service"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	svc := service.NewAuthService("secret", time.Hour)

	token, err := svc.SignAccessToken("comp-1", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.Sub != "comp-1" {
		t.Errorf("expected sub 'comp-1', got '%s'", claims.Sub)
	}
	if !claims.Privileged {
		t.Error("expected privileged claim")
	}
}

func TestAccessToken_WrongSecret(t *testing.T) {
	signer := service.NewAuthService("secret-a", time.Hour)
	verifier := service.NewAuthService("secret-b", time.Hour)

	token, _ := signer.SignAccessToken("comp-1", false)

	if _, err := verifier.ValidateAccessToken(token); err == nil {
		t.Fatal("expected error for wrong secret, got nil")
	}
}

func TestAccessToken_Expired(t *testing.T) {
	svc := service.NewAuthService("secret", -time.Minute)

	token, _ := svc.SignAccessToken("comp-1", false)

	if _, err := svc.ValidateAccessToken(token); err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
}
