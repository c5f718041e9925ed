package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/congo-pay/custody/internal/logging"
	"github.com/congo-pay/custody/internal/store"
)

func newTestRegistry() (*Registry, store.Collection) {
	profiles := store.NewMemory().Collection(store.Registry)
	return New(profiles, logging.Discard()), profiles
}

func sampleProfile(id string) Profile {
	return Profile{
		FullName:      "Ada Mbemba",
		Country:       "CG",
		Email:         "ada@example.com",
		UUID:          "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		ShortUUID:     id,
		WalletAddress: "0x970E8128AB834E8EAC17Ab8E3812F010678CF791",
		PasswordHash:  HashPassword("correct-pw"),
		Network:       "sepolia",
		ChainID:       11155111,
	}
}

func TestRegisterAndFind(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	created, err := reg.Register(ctx, sampleProfile("abc"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.Role != DefaultRole {
		t.Fatalf("expected default role, got %q", created.Role)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt != nil {
		t.Fatalf("unexpected timestamps %+v", created)
	}

	found, err := reg.FindByIdentifier(ctx, "abc")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.FullName != "Ada Mbemba" || found.ID() != "abc" {
		t.Fatalf("unexpected profile %+v", found)
	}
	if !VerifyPassword(found, "correct-pw") || VerifyPassword(found, "wrong-pw") {
		t.Fatalf("password digest check failed")
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	if _, err := reg.Register(ctx, sampleProfile("abc")); err != nil {
		t.Fatalf("register: %v", err)
	}
	second := sampleProfile("abc")
	second.FullName = "Impostor"
	if _, err := reg.Register(ctx, second); !errors.Is(err, ErrIdentifierTaken) {
		t.Fatalf("expected identifier taken, got %v", err)
	}

	found, _ := reg.FindByIdentifier(ctx, "abc")
	if found.FullName != "Ada Mbemba" {
		t.Fatalf("first profile was modified: %+v", found)
	}
}

func TestRegisterRejectsPlaintextPassword(t *testing.T) {
	reg, _ := newTestRegistry()
	p := sampleProfile("abc")
	p.PasswordHash = "correct-pw"
	if _, err := reg.Register(context.Background(), p); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected invalid profile, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	if _, err := reg.Update(ctx, "abc", Patch{}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}

	_, _ = reg.Register(ctx, sampleProfile("abc"))
	name := "Ada M."
	chain := int64(1)
	updated, err := reg.Update(ctx, "abc", Patch{FullName: &name, ChainID: &chain})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FullName != name || updated.ChainID != 1 || updated.Email != "ada@example.com" {
		t.Fatalf("patch not merged: %+v", updated)
	}
	if updated.UpdatedAt == nil {
		t.Fatalf("expected updatedAt stamp")
	}

	bad := "plaintext"
	if _, err := reg.Update(ctx, "abc", Patch{PasswordHash: &bad}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected invalid profile, got %v", err)
	}
}

func TestDeleteRunsHooks(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()
	_, _ = reg.Register(ctx, sampleProfile("abc"))

	var deleted []string
	reg.OnDelete(func(_ context.Context, id string) error {
		deleted = append(deleted, id)
		return nil
	})

	if err := reg.Delete(ctx, "abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "abc" {
		t.Fatalf("expected hook call, got %v", deleted)
	}
	if _, err := reg.FindByIdentifier(ctx, "abc"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected profile gone, got %v", err)
	}
	if err := reg.Delete(ctx, "abc"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found on second delete, got %v", err)
	}
}

func TestListAllSkipsCorruptEntries(t *testing.T) {
	reg, profiles := newTestRegistry()
	ctx := context.Background()
	_, _ = reg.Register(ctx, sampleProfile("abc"))
	_, _ = reg.Register(ctx, sampleProfile("def"))
	_ = profiles.Put(ctx, "bad", "{broken")

	all, err := reg.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two readable profiles, got %d", len(all))
	}
	if _, err := reg.FindByIdentifier(ctx, "bad"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected corrupt entry to read as absent, got %v", err)
	}
}

func TestHasCountsUnreadableEntries(t *testing.T) {
	reg, profiles := newTestRegistry()
	ctx := context.Background()
	_ = profiles.Put(ctx, "bad", "{broken")

	if ok, err := reg.Exists(ctx, "bad"); err != nil || ok {
		t.Fatalf("expected corrupt entry to read as absent, got %v, %v", ok, err)
	}
	if ok, err := reg.Has(ctx, "bad"); err != nil || !ok {
		t.Fatalf("expected corrupt entry to be present, got %v, %v", ok, err)
	}
	if ok, err := reg.Has(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing entry to be absent, got %v, %v", ok, err)
	}
}
