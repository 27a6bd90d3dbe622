package service

import (
	"errors"
	"testing"

	"github.com/norem/auth-service/internal/core/domain"
)

func TestRoleGuard_Hierarchy(t *testing.T) {
	guard := NewRoleGuard()
	all := []domain.Role{domain.RoleOwner, domain.RoleAdmin, domain.RoleUser}

	allowed := map[domain.Role]map[domain.Role]bool{
		domain.RoleOwner: {domain.RoleOwner: true, domain.RoleAdmin: true, domain.RoleUser: true},
		domain.RoleAdmin: {domain.RoleAdmin: true, domain.RoleUser: true},
		domain.RoleUser:  {domain.RoleUser: true},
	}

	for _, held := range all {
		for _, required := range all {
			err := guard.Authorize(&domain.Principal{UserID: "u", Role: held}, []domain.Role{required})
			want := allowed[held][required]
			if want && err != nil {
				t.Errorf("%s requiring %s: expected allow, got %v", held, required, err)
			}
			if !want && !errors.Is(err, domain.ErrForbidden) {
				t.Errorf("%s requiring %s: expected ErrForbidden, got %v", held, required, err)
			}
		}
	}
}

func TestRoleGuard_EdgeCases(t *testing.T) {
	guard := NewRoleGuard()

	if err := guard.Authorize(nil, nil); err != nil {
		t.Fatalf("empty requirement must allow, got %v", err)
	}
	if err := guard.Authorize(&domain.Principal{Role: "ghost"}, nil); err != nil {
		t.Fatalf("empty requirement must allow any principal, got %v", err)
	}
	if err := guard.Authorize(nil, []domain.Role{domain.RoleUser}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for missing principal, got %v", err)
	}
	if err := guard.Authorize(&domain.Principal{Role: "superuser"}, []domain.Role{domain.RoleUser}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unknown role, got %v", err)
	}
	// Any one of the listed roles is enough.
	if err := guard.Authorize(&domain.Principal{Role: domain.RoleUser}, []domain.Role{domain.RoleOwner, domain.RoleUser}); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}

func TestAccessGuard_Authenticate(t *testing.T) {
	issuer := newTestIssuer(t)
	guard := NewAccessGuard(issuer)

	pair, err := issuer.IssueTokenPair(alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	principal, err := guard.Authenticate(pair.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.UserID != alice.ID || principal.Role != alice.Role || principal.Email != alice.Email {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	if _, err := guard.Authenticate(""); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for empty token, got %v", err)
	}
	if _, err := guard.Authenticate(pair.RefreshToken); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected refresh token to be refused, got %v", err)
	}
}
