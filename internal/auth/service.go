package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/custody/internal/chainkey"
	"github.com/congo-pay/custody/internal/codec"
	"github.com/congo-pay/custody/internal/credential"
	"github.com/congo-pay/custody/internal/keycipher"
	"github.com/congo-pay/custody/internal/notification"
	"github.com/congo-pay/custody/internal/registry"
	"github.com/congo-pay/custody/internal/session"
)

// MinPasswordLength is enforced on registration and password changes.
const MinPasswordLength = 8

// OrphanGrace is how old a credential without a profile must be before
// SweepOrphans removes it. Younger ones may belong to a registration still
// running in another process.
const OrphanGrace = 10 * time.Minute

const mintAttempts = 3

// Deps are the collaborators of the registration and login flows.
type Deps struct {
	Codec       *codec.Codec
	Credentials *credential.Store
	Registry    *registry.Registry
	Sessions    *session.Manager
	Notifier    notification.Notifier
	Logger      *slog.Logger

	Network string
	ChainID int64

	// Optional overrides, used by tests.
	Mint     func() (uuid.UUID, string)
	Generate func() (chainkey.Keypair, error)
	Now      func() time.Time
}

// Service runs the account flows that touch more than one store.
type Service struct {
	codec       *codec.Codec
	credentials *credential.Store
	registry    *registry.Registry
	sessions    *session.Manager
	notifier    notification.Notifier
	logger      *slog.Logger
	network     string
	chainID     int64
	mint        func() (uuid.UUID, string)
	generate    func() (chainkey.Keypair, error)
	now         func() time.Time
}

// NewService wires a Service from d.
func NewService(d Deps) *Service {
	s := &Service{
		codec:       d.Codec,
		credentials: d.Credentials,
		registry:    d.Registry,
		sessions:    d.Sessions,
		notifier:    d.Notifier,
		logger:      d.Logger,
		network:     d.Network,
		chainID:     d.ChainID,
		mint:        d.Mint,
		generate:    d.Generate,
		now:         d.Now,
	}
	if s.mint == nil {
		s.mint = d.Codec.Mint
	}
	if s.generate == nil {
		s.generate = chainkey.Generate
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.notifier == nil {
		s.notifier = notification.NewLoggerNotifier(d.Logger)
	}
	return s
}

// RegisterInput carries the profile fields and secret of a new account.
// PrivateKey is optional; a fresh keypair is generated when it is empty.
type RegisterInput struct {
	FullName         string
	Country          string
	DateOfBirth      string
	PhoneCountryCode string
	Phone            string
	Email            string
	Password         string
	PrivateKey       string
	Role             string
}

// Register mints an identifier, stores the encrypted key, inserts the profile
// and activates a session for the new account. The credential is removed
// again if the profile insert fails.
func (s *Service) Register(ctx context.Context, in RegisterInput) (registry.Profile, error) {
	if len(in.Password) < MinPasswordLength {
		return registry.Profile{}, ErrWeakPassword
	}

	keypair, err := s.keypair(in.PrivateKey)
	if err != nil {
		return registry.Profile{}, err
	}

	canonical, id, err := s.freshIdentifier(ctx)
	if err != nil {
		return registry.Profile{}, err
	}

	if err := s.credentials.Store(ctx, id, keypair.Address, keypair.PrivateKey, in.Password); err != nil {
		return registry.Profile{}, fmt.Errorf("store credential: %w", err)
	}

	profile, err := s.registry.Register(ctx, registry.Profile{
		FullName:         in.FullName,
		Country:          in.Country,
		DateOfBirth:      in.DateOfBirth,
		PhoneCountryCode: in.PhoneCountryCode,
		Phone:            in.Phone,
		Email:            in.Email,
		UUID:             canonical.String(),
		ShortUUID:        id,
		WalletAddress:    keypair.Address,
		PasswordHash:     registry.HashPassword(in.Password),
		Network:          s.network,
		ChainID:          s.chainID,
		Role:             in.Role,
	})
	if err != nil {
		if derr := s.credentials.Delete(ctx, id); derr != nil {
			s.logger.Error("rollback credential failed", slog.String("id", id), slog.Any("error", derr))
		}
		return registry.Profile{}, fmt.Errorf("register profile: %w", err)
	}
	s.logger.Info("account registered", slog.String("id", id))

	if _, err := s.sessions.Login(ctx, id); err != nil {
		return profile, fmt.Errorf("activate session: %w", err)
	}
	s.notify(ctx, notification.KindRegistered, profile, "account created")
	return profile, nil
}

func (s *Service) keypair(privateKey string) (chainkey.Keypair, error) {
	if privateKey == "" {
		return s.generate()
	}
	address, err := chainkey.AddressOf(privateKey)
	if err != nil {
		return chainkey.Keypair{}, err
	}
	return chainkey.Keypair{PrivateKey: privateKey, Address: address}, nil
}

// freshIdentifier refuses ids present in either collection so the
// credential write can never overwrite another account's key.
func (s *Service) freshIdentifier(ctx context.Context) (uuid.UUID, string, error) {
	for i := 0; i < mintAttempts; i++ {
		canonical, id := s.mint()
		inRegistry, err := s.registry.Exists(ctx, id)
		if err != nil {
			return uuid.Nil, "", err
		}
		inCredentials, err := s.credentials.Exists(ctx, id)
		if err != nil {
			return uuid.Nil, "", err
		}
		if !inRegistry && !inCredentials {
			return canonical, id, nil
		}
		s.logger.Warn("minted identifier already in use", slog.String("id", id))
	}
	return uuid.Nil, "", registry.ErrIdentifierTaken
}

// verify runs the login protocol up to, but not including, session activation.
func (s *Service) verify(ctx context.Context, id, password string) (registry.Profile, string, error) {
	profile, err := s.registry.FindByIdentifier(ctx, id)
	if err != nil {
		return registry.Profile{}, "", fail(StageLookup, err)
	}
	if !registry.VerifyPassword(profile, password) {
		return registry.Profile{}, "", fail(StageDigest, ErrAddressMismatch)
	}

	privateKey, err := s.credentials.Recover(ctx, id, password)
	switch {
	case errors.Is(err, keycipher.ErrAuthentication):
		return registry.Profile{}, "", fail(StageRecover, ErrAddressMismatch)
	case err != nil:
		return registry.Profile{}, "", fail(StageRecover, err)
	}

	address, err := chainkey.AddressOf(privateKey)
	if err != nil || !chainkey.SameAddress(address, profile.WalletAddress) {
		return registry.Profile{}, "", fail(StageVerify, ErrAddressMismatch)
	}
	return profile, privateKey, nil
}

// Login verifies id and password and activates an account session.
func (s *Service) Login(ctx context.Context, id, password string) (registry.Profile, error) {
	if _, _, err := s.verify(ctx, id, password); err != nil {
		var le *LoginError
		if errors.As(err, &le) {
			s.logger.Info("login rejected", slog.String("id", id), slog.String("stage", string(le.Stage)))
		}
		return registry.Profile{}, err
	}
	profile, err := s.sessions.Login(ctx, id)
	if err != nil {
		return registry.Profile{}, fail(StageActivate, err)
	}
	s.notify(ctx, notification.KindLoggedIn, profile, "new login")
	return profile, nil
}

// Logout clears the active session.
func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.Logout(ctx)
}

// UnlockKey returns the private key of id once the password is verified.
func (s *Service) UnlockKey(ctx context.Context, id, password string) (string, error) {
	_, privateKey, err := s.verify(ctx, id, password)
	if err != nil {
		return "", err
	}
	return privateKey, nil
}

// ChangePassword re-encrypts the key under next and replaces the digest.
// The session is left untouched.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	if len(next) < MinPasswordLength {
		return ErrWeakPassword
	}
	profile, privateKey, err := s.verify(ctx, id, current)
	if err != nil {
		return err
	}
	if err := s.credentials.Store(ctx, id, profile.WalletAddress, privateKey, next); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	digest := registry.HashPassword(next)
	updated, err := s.registry.Update(ctx, id, registry.Patch{PasswordHash: &digest})
	if err != nil {
		if rerr := s.credentials.Store(ctx, id, profile.WalletAddress, privateKey, current); rerr != nil {
			s.logger.Error("restore credential failed", slog.String("id", id), slog.Any("error", rerr))
		}
		return fmt.Errorf("update digest: %w", err)
	}
	s.notify(ctx, notification.KindPasswordChanged, updated, "password changed")
	return nil
}

// DeleteAccount removes the profile and credential of id after verifying the
// password. Deleting the active account logs the session out.
func (s *Service) DeleteAccount(ctx context.Context, id, password string) error {
	profile, _, err := s.verify(ctx, id, password)
	if err != nil {
		return err
	}
	if err := s.registry.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if err := s.credentials.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	s.logger.Info("account deleted", slog.String("id", id))
	s.notify(ctx, notification.KindDeleted, profile, "account deleted")
	return nil
}

// ResolveAddress returns the public address of a counterparty given either
// its compact identifier or its canonical uuid.
func (s *Service) ResolveAddress(ctx context.Context, value string) (string, error) {
	id := value
	if len(value) == 36 {
		if compact, err := s.codec.EncodeString(value); err == nil {
			id = compact
		}
	}

	address, err := s.credentials.AddressOf(ctx, id)
	if err == nil {
		return address, nil
	}
	if !errors.Is(err, credential.ErrNotFound) {
		return "", err
	}
	profile, err := s.registry.FindByIdentifier(ctx, id)
	if err != nil {
		return "", err
	}
	return profile.WalletAddress, nil
}

// SweepOrphans deletes credentials older than OrphanGrace that have nothing
// stored under their id in the registry, left behind by a registration that
// stopped between its two writes. An unreadable profile still keeps its key.
func (s *Service) SweepOrphans(ctx context.Context) (int, error) {
	ids, err := s.credentials.StoredBefore(ctx, s.now().Add(-OrphanGrace))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		ok, err := s.registry.Has(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			continue
		}
		if err := s.credentials.Delete(ctx, id); err != nil {
			return removed, err
		}
		s.logger.Warn("removed orphaned credential", slog.String("id", id))
		removed++
	}
	return removed, nil
}

func (s *Service) notify(ctx context.Context, kind string, profile registry.Profile, body string) {
	destination := profile.Email
	if destination == "" {
		destination = profile.PhoneCountryCode + profile.Phone
	}
	msg := notification.Message{
		Kind:        kind,
		AccountID:   profile.ShortUUID,
		Destination: destination,
		Body:        body,
		At:          s.now().UTC(),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("notification failed", slog.String("id", profile.ShortUUID), slog.Any("error", err))
	}
}
