package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/custody/internal/keycipher"
	"github.com/congo-pay/custody/internal/store"
)

// ErrNotFound is returned when no credential exists for an identifier.
var ErrNotFound = errors.New("credential not found")

// Store keeps encrypted wallet keys keyed by compact account identifier.
type Store struct {
	records store.Collection
	cipher  keycipher.Cipher
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore builds a credential store over the given collection.
func NewStore(records store.Collection, cipher keycipher.Cipher, logger *slog.Logger) *Store {
	return &Store{records: records, cipher: cipher, logger: logger, now: time.Now}
}

// Store encrypts privateKey under password and upserts the record for id.
func (s *Store) Store(ctx context.Context, id, address, privateKey, password string) error {
	ciphertext, err := s.cipher.Encrypt(privateKey, password)
	if err != nil {
		return fmt.Errorf("encrypt private key: %w", err)
	}
	payload, err := json.Marshal(Record{
		Address:             address,
		EncryptedPrivateKey: ciphertext,
		CreatedAt:           s.now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.records.Put(ctx, id, string(payload))
}

// AddressOf returns the public chain address stored for id.
func (s *Store) AddressOf(ctx context.Context, id string) (string, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	return rec.Address, nil
}

// Recover decrypts the private key stored for id. It does not check that the
// password was right; callers compare the derived address themselves.
func (s *Store) Recover(ctx context.Context, id, password string) (string, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	return s.cipher.Decrypt(rec.EncryptedPrivateKey, password)
}

// Exists reports whether a credential is stored for id.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes the credential for id. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.records.Delete(ctx, id)
}

// IDs lists every identifier with a stored credential.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	all, err := s.records.All(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	return ids, nil
}

// StoredBefore lists identifiers whose record was written before cutoff.
// Unreadable records are never listed.
func (s *Store) StoredBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	all, err := s.records.All(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for id, raw := range all {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.CreatedAt.IsZero() {
			continue
		}
		if rec.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// load treats a corrupt record as absent.
func (s *Store) load(ctx context.Context, id string) (Record, error) {
	raw, err := s.records.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("discarding unreadable credential", slog.String("id", id), slog.Any("error", err))
		return Record{}, ErrNotFound
	}
	return rec, nil
}
