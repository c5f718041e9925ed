package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/custody/internal/chainkey"
	"github.com/congo-pay/custody/internal/codec"
	"github.com/congo-pay/custody/internal/credential"
	"github.com/congo-pay/custody/internal/keycipher"
	"github.com/congo-pay/custody/internal/logging"
	"github.com/congo-pay/custody/internal/notification"
	"github.com/congo-pay/custody/internal/registry"
	"github.com/congo-pay/custody/internal/session"
	"github.com/congo-pay/custody/internal/store"
)

const (
	vectorKey     = "0x289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032"
	vectorAddress = "0x970e8128ab834e8eac17ab8e3812f010678cf791"
	scenarioID    = "Nf3x9QaB2yZ7"
)

func wideAlphabet() string {
	symbols := []rune("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")
	for r := rune(0x4E00); len(symbols) < 2048; r++ {
		symbols = append(symbols, r)
	}
	return string(symbols)
}

type recorder struct{ kinds []string }

func (r *recorder) Send(_ context.Context, m notification.Message) error {
	r.kinds = append(r.kinds, m.Kind)
	return nil
}

type harness struct {
	svc      *Service
	backend  store.Backend
	creds    *credential.Store
	reg      *registry.Registry
	sessions *session.Manager
	notes    *recorder
}

func newHarness(t *testing.T, cipher keycipher.Cipher, mint func() (uuid.UUID, string)) harness {
	t.Helper()
	ctx := context.Background()
	logger := logging.Discard()
	backend := store.NewMemory()
	c := codec.MustNew(wideAlphabet())
	creds := credential.NewStore(backend.Collection(store.Credentials), cipher, logger)
	reg := registry.New(backend.Collection(store.Registry), logger)
	sessions, err := session.NewManager(ctx, reg, backend.Collection(store.Session), logger)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	notes := &recorder{}
	svc := NewService(Deps{
		Codec:       c,
		Credentials: creds,
		Registry:    reg,
		Sessions:    sessions,
		Notifier:    notes,
		Logger:      logger,
		Network:     "sepolia",
		ChainID:     11155111,
		Mint:        mint,
	})
	return harness{svc: svc, backend: backend, creds: creds, reg: reg, sessions: sessions, notes: notes}
}

func scenarioMint(t *testing.T) func() (uuid.UUID, string) {
	t.Helper()
	id, err := codec.MustNew(wideAlphabet()).Decode(scenarioID)
	if err != nil {
		t.Fatalf("decode scenario id: %v", err)
	}
	return func() (uuid.UUID, string) { return id, scenarioID }
}

func fastSealed() keycipher.Cipher {
	return &keycipher.Sealed{Time: 1, MemoryKiB: 1024, Threads: 1}
}

func ciphers() map[string]keycipher.Cipher {
	return map[string]keycipher.Cipher{
		"legacy": keycipher.Legacy{},
		"sealed": fastSealed(),
	}
}

func registerScenario(t *testing.T, h harness) registry.Profile {
	t.Helper()
	profile, err := h.svc.Register(context.Background(), RegisterInput{
		FullName:   "Ada Mbemba",
		Email:      "ada@example.com",
		Password:   "correct-pw",
		PrivateKey: vectorKey,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return profile
}

func stageOf(err error) Stage {
	var le *LoginError
	if errors.As(err, &le) {
		return le.Stage
	}
	return ""
}

func TestScenarioLogin(t *testing.T) {
	for name, cipher := range ciphers() {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, cipher, scenarioMint(t))
			ctx := context.Background()
			registered := registerScenario(t, h)
			if registered.ShortUUID != scenarioID || registered.Role != registry.DefaultRole {
				t.Fatalf("unexpected profile %+v", registered)
			}
			if err := h.svc.Logout(ctx); err != nil {
				t.Fatalf("logout: %v", err)
			}

			profile, err := h.svc.Login(ctx, scenarioID, "correct-pw")
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			if !chainkey.SameAddress(profile.WalletAddress, vectorAddress) {
				t.Fatalf("expected stored address, got %s", profile.WalletAddress)
			}
			if cur := h.sessions.Current(); cur.AccountID != scenarioID {
				t.Fatalf("expected active session, got %+v", cur)
			}

			_ = h.svc.Logout(ctx)
			_, err = h.svc.Login(ctx, scenarioID, "wrong-pw")
			if !errors.Is(err, ErrAddressMismatch) {
				t.Fatalf("expected address mismatch, got %v", err)
			}
			if h.sessions.Current().Kind != session.None {
				t.Fatalf("failed login must not activate a session")
			}
		})
	}
}

func TestRegisterActivatesSessionAndNotifies(t *testing.T) {
	h := newHarness(t, fastSealed(), nil)
	profile, err := h.svc.Register(context.Background(), RegisterInput{FullName: "Jo", Password: "long-enough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len([]rune(profile.ShortUUID)) != 12 {
		t.Fatalf("expected 12 symbol id, got %q", profile.ShortUUID)
	}
	if _, err := uuid.Parse(profile.UUID); err != nil {
		t.Fatalf("expected canonical uuid, got %q", profile.UUID)
	}
	if profile.Network != "sepolia" || profile.ChainID != 11155111 {
		t.Fatalf("chain not stamped: %+v", profile)
	}
	if profile.PasswordHash == "long-enough" {
		t.Fatalf("password stored in clear")
	}
	if h.sessions.Current().AccountID != profile.ShortUUID {
		t.Fatalf("expected session for new account")
	}
	if len(h.notes.kinds) != 1 || h.notes.kinds[0] != notification.KindRegistered {
		t.Fatalf("unexpected notifications %v", h.notes.kinds)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	h := newHarness(t, keycipher.Legacy{}, nil)
	if _, err := h.svc.Register(context.Background(), RegisterInput{Password: "short"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}
}

func TestRegisterDuplicateLeavesFirstAccountIntact(t *testing.T) {
	h := newHarness(t, keycipher.Legacy{}, scenarioMint(t))
	ctx := context.Background()
	registerScenario(t, h)

	_, err := h.svc.Register(ctx, RegisterInput{FullName: "Other", Password: "other-password"})
	if !errors.Is(err, registry.ErrIdentifierTaken) {
		t.Fatalf("expected identifier taken, got %v", err)
	}
	if _, err := h.svc.Login(ctx, scenarioID, "correct-pw"); err != nil {
		t.Fatalf("first account must still log in: %v", err)
	}
}

type failingProfiles struct{ store.Collection }

func (failingProfiles) PutIfAbsent(context.Context, string, string) (bool, error) {
	return false, errors.New("disk full")
}

func TestRegisterRollsBackCredential(t *testing.T) {
	ctx := context.Background()
	logger := logging.Discard()
	backend := store.NewMemory()
	creds := credential.NewStore(backend.Collection(store.Credentials), keycipher.Legacy{}, logger)
	reg := registry.New(failingProfiles{backend.Collection(store.Registry)}, logger)
	sessions, err := session.NewManager(ctx, reg, backend.Collection(store.Session), logger)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	svc := NewService(Deps{Codec: codec.MustNew(codec.DefaultAlphabet), Credentials: creds, Registry: reg, Sessions: sessions, Logger: logger})

	if _, err := svc.Register(ctx, RegisterInput{Password: "long-enough"}); err == nil {
		t.Fatalf("expected registration failure")
	}
	ids, _ := creds.IDs(ctx)
	if len(ids) != 0 {
		t.Fatalf("expected credential rollback, found %v", ids)
	}
	if sessions.Current().Kind != session.None {
		t.Fatalf("failed registration must not activate a session")
	}
}

func TestLoginStages(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown account", func(t *testing.T) {
		h := newHarness(t, keycipher.Legacy{}, nil)
		_, err := h.svc.Login(ctx, scenarioID, "correct-pw")
		if !errors.Is(err, registry.ErrUserNotFound) || stageOf(err) != StageLookup {
			t.Fatalf("expected lookup failure, got %v", err)
		}
	})

	tampered := map[string]struct {
		cipher keycipher.Cipher
		stage  Stage
	}{
		"legacy": {keycipher.Legacy{}, StageVerify},
		"sealed": {fastSealed(), StageRecover},
	}
	for name, tc := range tampered {
		t.Run("credential under other password/"+name, func(t *testing.T) {
			h := newHarness(t, tc.cipher, scenarioMint(t))
			registerScenario(t, h)
			if err := h.creds.Store(ctx, scenarioID, vectorAddress, vectorKey, "other-pw"); err != nil {
				t.Fatalf("overwrite credential: %v", err)
			}
			_, err := h.svc.Login(ctx, scenarioID, "correct-pw")
			if !errors.Is(err, ErrAddressMismatch) || stageOf(err) != tc.stage {
				t.Fatalf("expected mismatch at %s, got %v", tc.stage, err)
			}
		})
	}

	t.Run("undecodable credential", func(t *testing.T) {
		h := newHarness(t, keycipher.Legacy{}, scenarioMint(t))
		registerScenario(t, h)
		raw := `{"address":"` + vectorAddress + `","encryptedPrivateKey":"%%%","createdAt":"2024-01-01T00:00:00Z"}`
		_ = h.backend.Collection(store.Credentials).Put(ctx, scenarioID, raw)
		_, err := h.svc.Login(ctx, scenarioID, "correct-pw")
		if !errors.Is(err, keycipher.ErrDecode) || stageOf(err) != StageRecover {
			t.Fatalf("expected decode failure, got %v", err)
		}
	})
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t, fastSealed(), scenarioMint(t))
	ctx := context.Background()
	registerScenario(t, h)

	if err := h.svc.ChangePassword(ctx, scenarioID, "correct-pw", "tiny"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if err := h.svc.ChangePassword(ctx, scenarioID, "wrong-pw", "brand-new-pw"); !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := h.svc.ChangePassword(ctx, scenarioID, "correct-pw", "brand-new-pw"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := h.svc.Login(ctx, scenarioID, "correct-pw"); !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	key, err := h.svc.UnlockKey(ctx, scenarioID, "brand-new-pw")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if key != vectorKey {
		t.Fatalf("expected the same key after re-encryption")
	}
}

func TestDeleteAccountLogsOut(t *testing.T) {
	h := newHarness(t, keycipher.Legacy{}, scenarioMint(t))
	ctx := context.Background()
	registerScenario(t, h)

	if err := h.svc.DeleteAccount(ctx, scenarioID, "wrong-pw"); !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := h.svc.DeleteAccount(ctx, scenarioID, "correct-pw"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if h.sessions.Current().Kind != session.None {
		t.Fatalf("expected logout after deleting active account")
	}
	if ok, _ := h.creds.Exists(ctx, scenarioID); ok {
		t.Fatalf("expected credential removed")
	}
	last := h.notes.kinds[len(h.notes.kinds)-1]
	if last != notification.KindDeleted {
		t.Fatalf("expected delete notification, got %v", h.notes.kinds)
	}
}

func TestResolveAddress(t *testing.T) {
	mint := scenarioMint(t)
	canonical, _ := mint()
	h := newHarness(t, keycipher.Legacy{}, mint)
	ctx := context.Background()
	registerScenario(t, h)

	for _, in := range []string{scenarioID, canonical.String()} {
		addr, err := h.svc.ResolveAddress(ctx, in)
		if err != nil {
			t.Fatalf("resolve %s: %v", in, err)
		}
		if !chainkey.SameAddress(addr, vectorAddress) {
			t.Fatalf("resolve %s: unexpected address %s", in, addr)
		}
	}
	if _, err := h.svc.ResolveAddress(ctx, "nobody"); !errors.Is(err, registry.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestSweepOrphans(t *testing.T) {
	h := newHarness(t, keycipher.Legacy{}, scenarioMint(t))
	ctx := context.Background()
	registerScenario(t, h)
	if err := h.creds.Store(ctx, "orphan", vectorAddress, vectorKey, "pw"); err != nil {
		t.Fatalf("store orphan: %v", err)
	}

	removed, err := h.svc.SweepOrphans(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("a fresh credential may still be mid-registration, removed %d", removed)
	}

	h.svc.now = func() time.Time { return time.Now().Add(OrphanGrace + time.Minute) }
	removed, err = h.svc.SweepOrphans(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one orphan removed, got %d", removed)
	}
	if ok, _ := h.creds.Exists(ctx, "orphan"); ok {
		t.Fatalf("expected orphan gone")
	}
	if ok, _ := h.creds.Exists(ctx, scenarioID); !ok {
		t.Fatalf("sweep removed a live credential")
	}
}

func TestSweepKeepsKeyOfUnreadableProfile(t *testing.T) {
	h := newHarness(t, keycipher.Legacy{}, scenarioMint(t))
	ctx := context.Background()
	registerScenario(t, h)

	profiles := h.backend.Collection(store.Registry)
	raw, err := profiles.Get(ctx, scenarioID)
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	if err := profiles.Put(ctx, scenarioID, raw[:len(raw)-1]); err != nil {
		t.Fatalf("truncate profile: %v", err)
	}

	h.svc.now = func() time.Time { return time.Now().Add(OrphanGrace + time.Minute) }
	removed, err := h.svc.SweepOrphans(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected no credential removed, got %d", removed)
	}
	if ok, _ := h.creds.Exists(ctx, scenarioID); !ok {
		t.Fatalf("credential of an unreadable profile was removed")
	}
}
