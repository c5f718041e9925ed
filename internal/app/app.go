package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/congo-pay/custody/internal/auth"
	"github.com/congo-pay/custody/internal/codec"
	"github.com/congo-pay/custody/internal/config"
	"github.com/congo-pay/custody/internal/credential"
	"github.com/congo-pay/custody/internal/infra"
	"github.com/congo-pay/custody/internal/keycipher"
	"github.com/congo-pay/custody/internal/notification"
	"github.com/congo-pay/custody/internal/registry"
	"github.com/congo-pay/custody/internal/session"
	"github.com/congo-pay/custody/internal/store"
)

// App owns every long-lived component of one process.
type App struct {
	Config      config.Config
	Logger      *slog.Logger
	Resources   *infra.Resources
	Codec       *codec.Codec
	Credentials *credential.Store
	Registry    *registry.Registry
	Sessions    *session.Manager
	Auth        *auth.Service
}

// New opens the configured store and wires the account components over it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	res, err := infra.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a, err := Build(ctx, cfg, res, logger)
	if err != nil {
		res.Close()
		return nil, err
	}
	return a, nil
}

// Build wires the components over already opened resources.
func Build(ctx context.Context, cfg config.Config, res *infra.Resources, logger *slog.Logger) (*App, error) {
	c, err := NewCodec(cfg)
	if err != nil {
		return nil, err
	}

	creds := credential.NewStore(res.Backend.Collection(store.Credentials), NewCipher(cfg), logger)
	reg := registry.New(res.Backend.Collection(store.Registry), logger)
	sessions, err := session.NewManager(ctx, reg, res.Backend.Collection(store.Session), logger)
	if err != nil {
		return nil, err
	}

	notifier := notification.Notifier(notification.NewLoggerNotifier(logger))
	if res.Cache != nil {
		notifier = notification.Fanout{notifier, notification.NewRedisNotifier(res.Cache, "")}
	}

	svc := auth.NewService(auth.Deps{
		Codec:       c,
		Credentials: creds,
		Registry:    reg,
		Sessions:    sessions,
		Notifier:    notifier,
		Logger:      logger,
		Network:     cfg.ChainNetwork,
		ChainID:     cfg.ChainID,
	})

	removed, err := svc.SweepOrphans(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweep orphaned credentials: %w", err)
	}
	if removed > 0 {
		logger.Warn("orphaned credentials removed", slog.Int("count", removed))
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Resources:   res,
		Codec:       c,
		Credentials: creds,
		Registry:    reg,
		Sessions:    sessions,
		Auth:        svc,
	}, nil
}

// NewCodec builds the identifier codec from ID_ALPHABET, or the default alphabet.
func NewCodec(cfg config.Config) (*codec.Codec, error) {
	alphabet := cfg.IDAlphabet
	if alphabet == "" {
		alphabet = codec.DefaultAlphabet
	}
	return codec.New(alphabet)
}

// NewCipher returns the key cipher selected by CIPHER_SCHEME.
func NewCipher(cfg config.Config) keycipher.Cipher {
	if cfg.CipherScheme == config.CipherLegacy {
		return keycipher.Legacy{}
	}
	sealed := keycipher.NewSealed(cfg.CipherAllowLegacy)
	sealed.Time = cfg.ArgonTime
	sealed.MemoryKiB = cfg.ArgonMemoryKiB
	return sealed
}

// Close releases the store and cache connections.
func (a *App) Close() error {
	return a.Resources.Close()
}
