package secrets

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	keyringService = "opent1d"
	keyringItem    = "settings-encryption-key"
)

// KeySource describes where the encryption passphrase comes from.
type KeySource struct {
	// Passphrase is used as is when set (OPENT1D_ENCRYPTION_KEY).
	Passphrase string
	// UseKeyring enables reading, and on first use creating, the
	// passphrase in the OS keyring.
	UseKeyring bool
	// Open overrides keyring.Open (tests).
	Open func(keyring.Config) (keyring.Keyring, error)
}

// LoadSealer resolves the passphrase and returns a Sealer, or nil when
// encryption at rest is disabled.
func LoadSealer(src KeySource) (*Sealer, error) {
	passphrase, err := loadPassphrase(src)
	if err != nil {
		return nil, err
	}
	if passphrase == "" {
		return nil, nil
	}
	return NewSealer(passphrase)
}

func loadPassphrase(src KeySource) (string, error) {
	if src.Passphrase != "" {
		return src.Passphrase, nil
	}
	if !src.UseKeyring {
		return "", nil
	}
	open := src.Open
	if open == nil {
		open = keyring.Open
	}
	ring, err := open(keyring.Config{ServiceName: keyringService})
	if err != nil {
		return "", fmt.Errorf("open keyring: %w", err)
	}
	item, err := ring.Get(keyringItem)
	if err == nil {
		return string(item.Data), nil
	}
	if !errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("read keyring: %w", err)
	}
	passphrase, err := GenerateKey()
	if err != nil {
		return "", err
	}
	if err := ring.Set(keyring.Item{
		Key:   keyringItem,
		Data:  []byte(passphrase),
		Label: "OpenT1D settings encryption key",
	}); err != nil {
		return "", fmt.Errorf("write keyring: %w", err)
	}
	return passphrase, nil
}
