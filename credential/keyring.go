// Package credential resolves account secrets (IMAP passwords, OAuth2
// refresh tokens) from the host OS's keyring, so the config package never
// needs them stored in plaintext.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "imapkit"

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/imapkit/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("imapkit-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("credential: opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a secret by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("credential: getting %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a secret by key in the system keyring.
func Set(key, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("credential: setting %q: %w", key, err)
	}
	return nil
}

// Delete removes a secret by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("credential: deleting %q: %w", key, err)
	}
	return nil
}
