// Package credential remembers the account secret in the system keyring
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
	"github.com/sirupsen/logrus"

	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

const (
	serviceName = "phishguard"

	// defaultKey holds the address of the most recently remembered account
	defaultKey = "default-account"
)

// ErrNotFound is returned when nothing is stored for the account
var ErrNotFound = errors.New("no stored credentials")

// Store reads and writes credentials in a keyring
type Store struct {
	ring   keyring.Keyring
	logger *logrus.Logger
}

// Open returns a store backed by the platform keyring, falling back to an
// encrypted file under the user's config directory. The file is encrypted
// with passphrase, or with one read from the terminal when it is empty.
func Open(passphrase string, logger *logrus.Logger) (*Store, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "~/.config"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(dir, serviceName, "credentials"),
		FilePasswordFunc:         filePassword(passphrase),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring, logger), nil
}

func filePassword(passphrase string) keyring.PromptFunc {
	if passphrase == "" {
		return keyring.TerminalPrompt
	}
	return keyring.FixedStringPrompt(passphrase)
}

// NewStore wraps an already opened keyring
func NewStore(ring keyring.Keyring, logger *logrus.Logger) *Store {
	return &Store{ring: ring, logger: logger}
}

func accountKey(address string) string {
	return "account:" + strings.ToLower(strings.TrimSpace(address))
}

// Remember stores creds and makes the account the default
func (s *Store) Remember(creds types.Credentials) error {
	if creds.Empty() {
		return fmt.Errorf("address and secret are required")
	}

	err := s.ring.Set(keyring.Item{
		Key:         accountKey(creds.Address),
		Data:        []byte(creds.Secret),
		Label:       "Mail account " + creds.Address,
		Description: "application password",
	})
	if err != nil {
		return fmt.Errorf("setting credential for %q: %w", creds.Address, err)
	}

	if err := s.ring.Set(keyring.Item{Key: defaultKey, Data: []byte(creds.Address)}); err != nil {
		return fmt.Errorf("setting default account: %w", err)
	}

	s.logger.WithField("address", creds.Address).Info("Credentials remembered")
	return nil
}

// Recall returns the stored credentials for address, or for the default
// account when address is empty
func (s *Store) Recall(address string) (types.Credentials, error) {
	if strings.TrimSpace(address) == "" {
		item, err := s.ring.Get(defaultKey)
		if err != nil {
			return types.Credentials{}, s.notFound("default account", err)
		}
		address = string(item.Data)
	}

	item, err := s.ring.Get(accountKey(address))
	if err != nil {
		return types.Credentials{}, s.notFound(address, err)
	}

	return types.Credentials{Address: strings.TrimSpace(address), Secret: string(item.Data)}, nil
}

// Forget removes the stored secret for address. Forgetting the default
// account also clears the default.
func (s *Store) Forget(address string) error {
	if err := s.ring.Remove(accountKey(address)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential for %q: %w", address, err)
	}

	if item, err := s.ring.Get(defaultKey); err == nil && strings.EqualFold(string(item.Data), strings.TrimSpace(address)) {
		if err := s.ring.Remove(defaultKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("clearing default account: %w", err)
		}
	}

	s.logger.WithField("address", address).Info("Credentials forgotten")
	return nil
}

func (s *Store) notFound(what string, err error) error {
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%w for %s", ErrNotFound, what)
	}
	return fmt.Errorf("getting credential for %s: %w", what, err)
}
