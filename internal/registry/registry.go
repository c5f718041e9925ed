package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/congo-pay/custody/internal/store"
)

var (
	// ErrIdentifierTaken is returned when registering an identifier that is
	// already present.
	ErrIdentifierTaken = errors.New("identifier already registered")

	// ErrUserNotFound is returned when no profile exists for an identifier.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidProfile is returned for profiles missing required fields.
	ErrInvalidProfile = errors.New("invalid profile")
)

// DeleteHook runs after a profile is removed.
type DeleteHook func(ctx context.Context, id string) error

// Registry persists account profiles keyed by compact identifier.
type Registry struct {
	profiles store.Collection
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.RWMutex
	hooks []DeleteHook
}

// New builds a registry over the given collection.
func New(profiles store.Collection, logger *slog.Logger) *Registry {
	return &Registry{profiles: profiles, logger: logger, now: time.Now}
}

// OnDelete registers fn to run after every successful Delete.
func (r *Registry) OnDelete(fn DeleteHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Register inserts a new profile, stamping its creation time and default role.
func (r *Registry) Register(ctx context.Context, profile Profile) (Profile, error) {
	if profile.ShortUUID == "" {
		return Profile{}, fmt.Errorf("%w: missing identifier", ErrInvalidProfile)
	}
	if !isDigest(profile.PasswordHash) {
		return Profile{}, fmt.Errorf("%w: password hash is not a hex digest", ErrInvalidProfile)
	}

	profile.CreatedAt = r.now().UTC()
	profile.UpdatedAt = nil
	if profile.Role == "" {
		profile.Role = DefaultRole
	}

	payload, err := json.Marshal(profile)
	if err != nil {
		return Profile{}, err
	}
	stored, err := r.profiles.PutIfAbsent(ctx, profile.ShortUUID, string(payload))
	if err != nil {
		return Profile{}, err
	}
	if !stored {
		return Profile{}, ErrIdentifierTaken
	}
	return profile, nil
}

// FindByIdentifier fetches the profile stored under id.
func (r *Registry) FindByIdentifier(ctx context.Context, id string) (Profile, error) {
	raw, err := r.profiles.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Profile{}, ErrUserNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	profile, ok := r.decode(id, raw)
	if !ok {
		return Profile{}, ErrUserNotFound
	}
	return profile, nil
}

// Exists reports whether a readable profile is stored under id.
func (r *Registry) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.FindByIdentifier(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Has reports whether anything is stored under id, readable or not.
func (r *Registry) Has(ctx context.Context, id string) (bool, error) {
	_, err := r.profiles.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Update merges patch into the profile stored under id.
func (r *Registry) Update(ctx context.Context, id string, patch Patch) (Profile, error) {
	profile, err := r.FindByIdentifier(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	patch.apply(&profile)
	if !isDigest(profile.PasswordHash) {
		return Profile{}, fmt.Errorf("%w: password hash is not a hex digest", ErrInvalidProfile)
	}
	now := r.now().UTC()
	profile.UpdatedAt = &now

	payload, err := json.Marshal(profile)
	if err != nil {
		return Profile{}, err
	}
	if err := r.profiles.Put(ctx, id, string(payload)); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Delete removes the profile stored under id and runs the delete hooks.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if _, err := r.profiles.Get(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := r.profiles.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.RLock()
	hooks := append([]DeleteHook(nil), r.hooks...)
	r.mu.RUnlock()

	var errs []error
	for _, hook := range hooks {
		if err := hook(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListAll returns every readable profile keyed by identifier.
func (r *Registry) ListAll(ctx context.Context) (map[string]Profile, error) {
	all, err := r.profiles.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Profile, len(all))
	for id, raw := range all {
		if profile, ok := r.decode(id, raw); ok {
			out[id] = profile
		}
	}
	return out, nil
}

// decode treats unreadable entries as absent.
func (r *Registry) decode(id, raw string) (Profile, bool) {
	var profile Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		r.logger.Warn("discarding unreadable profile", slog.String("id", id), slog.Any("error", err))
		return Profile{}, false
	}
	return profile, true
}
