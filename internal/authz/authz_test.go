package authz

import (
	"context"
	"testing"
	"time"

	"ark/internal/clock"
	"ark/internal/model"
	"ark/internal/store"
	"ark/internal/store/memstore"
	"ark/internal/types"
)

func newTestStore() store.Store {
	return memstore.New(clock.NewFakeClock(time.Unix(0, 0)))
}

func TestResolverRole(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	r := New(st)

	role, err := r.Role(ctx, types.ID("unregistered-user"))
	if err != nil {
		t.Fatalf("Role() error = %v", err)
	}
	if role != model.RolePassenger {
		t.Errorf("unregistered user role = %q, want passenger", role)
	}

	err = st.Collection(model.CollectionUsers).Doc("driver-1").Set(ctx, map[string]any{
		"id":   "driver-1",
		"role": string(model.RoleDriver),
	})
	if err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	role, err = r.Role(ctx, types.ID("driver-1"))
	if err != nil {
		t.Fatalf("Role() error = %v", err)
	}
	if role != model.RoleDriver {
		t.Errorf("role = %q, want driver", role)
	}
}

func TestRequireRole(t *testing.T) {
	if err := RequireRole(model.RolePassenger, model.RoleDriver, model.RoleManager); err == nil {
		t.Error("expected forbidden error for passenger requiring driver/manager")
	}
	if err := RequireRole(model.RoleDriver, model.RoleDriver); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestRequireSelf(t *testing.T) {
	if err := RequireSelf(types.ID("a"), types.ID("b")); err == nil {
		t.Error("expected forbidden error for mismatched ids")
	}
	if err := RequireSelf(types.ID("a"), types.ID("a")); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestRequireManager(t *testing.T) {
	if err := RequireManager(model.RolePassenger); err == nil {
		t.Error("expected forbidden error for passenger")
	}
	if err := RequireManager(model.RoleAdmin); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
