package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/bcnelson/env-manager/internal/domain"
)

type staticChecker struct {
	admin bool
	err   error
	calls int
}

func (c *staticChecker) IsAdmin(ctx context.Context) (bool, error) {
	c.calls++
	return c.admin, c.err
}

func TestCanWrite(t *testing.T) {
	tests := []struct {
		name  string
		admin bool
		scope domain.Scope
		want  bool
	}{
		{"user scope unprivileged", false, domain.ScopeUser, true},
		{"user scope privileged", true, domain.ScopeUser, true},
		{"system scope unprivileged", false, domain.ScopeSystem, false},
		{"system scope privileged", true, domain.ScopeSystem, true},
		{"unknown scope", true, domain.Scope("machine"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewGate(tt.admin).CanWrite(tt.scope); got != tt.want {
				t.Errorf("CanWrite(%q) = %v, want %v", tt.scope, got, tt.want)
			}
		})
	}
}

func TestDetectCachesOnce(t *testing.T) {
	checker := &staticChecker{admin: true}
	gate, err := Detect(context.Background(), checker)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	checker.admin = false
	for i := 0; i < 3; i++ {
		if !gate.CanWrite(domain.ScopeSystem) {
			t.Fatal("gate changed after detection")
		}
	}
	if checker.calls != 1 {
		t.Errorf("expected 1 privilege check, got %d", checker.calls)
	}
}

func TestDetectError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Detect(context.Background(), &staticChecker{err: boom}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestCheck(t *testing.T) {
	v := domain.EnvironmentVariable{Name: "PATH", Scope: domain.ScopeSystem}
	if err := NewGate(false).Check(v); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := NewGate(true).Check(v); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
