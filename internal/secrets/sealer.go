package secrets

import "strings"

// sealedPrefix marks values written by a Sealer. Values without it are
// treated as plaintext written before encryption was enabled.
const sealedPrefix = "enc:v1:"

// Sealer encrypts individual strings with a fixed key.
type Sealer struct {
	key []byte
}

// NewSealer derives a key from passphrase and returns a Sealer.
func NewSealer(passphrase string) (*Sealer, error) {
	key, err := DeriveKey(passphrase)
	if err != nil {
		return nil, err
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext and tags it with the sealed prefix.
func (s *Sealer) Seal(plaintext string) (string, error) {
	ct, err := Encrypt(plaintext, s.key)
	if err != nil {
		return "", err
	}
	return sealedPrefix + ct, nil
}

// Open decrypts a sealed value. Untagged values are returned as is.
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	return Decrypt(strings.TrimPrefix(value, sealedPrefix), s.key)
}
