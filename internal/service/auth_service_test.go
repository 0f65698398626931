package service

import (
	"errors"
	"testing"

	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/repository"
)

func TestAdminLoginAndTokenVersion(t *testing.T) {
	f := setupMarketTest(t)
	auth := NewAuthService(config.JWTConfig{SecretKey: "admin-secret", ExpireHours: 1}, repository.NewAdminRepository(f.db))

	admin, created, err := auth.EnsureSuperAdmin("root", "password123")
	if err != nil || !created {
		t.Fatalf("ensure super admin failed: created=%v err=%v", created, err)
	}
	if _, created, err := auth.EnsureSuperAdmin("root", "password123"); err != nil || created {
		t.Fatalf("second ensure should be a no-op: created=%v err=%v", created, err)
	}

	if _, _, _, err := auth.Login("root", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, _, err := auth.Login("ghost", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown admin, got %v", err)
	}

	_, token, _, err := auth.Login("root", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	claims, err := auth.ParseJWT(token)
	if err != nil {
		t.Fatalf("parse jwt failed: %v", err)
	}
	if claims.AdminID != admin.ID || claims.Username != "root" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := ParseAdminJWT("other-secret", token); err == nil {
		t.Fatalf("token signed with another secret should fail")
	}

	if err := auth.ChangePassword(admin.ID, "password123", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := auth.ChangePassword(admin.ID, "password123", "new-password-1"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	reloaded, err := auth.GetAdmin(admin.ID)
	if err != nil {
		t.Fatalf("reload admin failed: %v", err)
	}
	if IsTokenCurrent(reloaded, claims) {
		t.Fatalf("old token should be revoked after password change")
	}
}

func TestIdentityTokenRoundTrip(t *testing.T) {
	identity := NewIdentityService(config.JWTConfig{SecretKey: "user-secret", Issuer: "worldid", ExpireHours: 1})
	token, _, err := identity.Issue("0xabc", "Alice")
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	parsed, err := identity.Parse(token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if parsed.ExternalID != "0xabc" || parsed.DisplayName != "Alice" || parsed.IssuedAt.IsZero() {
		t.Fatalf("unexpected identity: %+v", parsed)
	}

	other := NewIdentityService(config.JWTConfig{SecretKey: "user-secret", Issuer: "someone-else"})
	if _, err := other.Parse(token); err == nil {
		t.Fatalf("issuer mismatch should fail")
	}
	if _, _, err := identity.Issue("", ""); err != nil {
		t.Fatalf("issue empty token failed: %v", err)
	}
	empty, _, _ := identity.Issue("", "")
	if _, err := identity.Parse(empty); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("token without subject should be invalid, got %v", err)
	}
}
