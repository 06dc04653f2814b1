// Package account keeps the developer account used for sideloading in an
// encrypted credentials vault.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/apex/log"
)

const (
	KeychainServiceName = "iloader"
	VaultName           = "iloader-account"
	AppName             = "io.github.iloader"
)

var (
	// ErrNotLoggedIn is returned when the vault holds no account.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrInvalidCredentials is returned for an empty Apple ID or password.
	ErrInvalidCredentials = errors.New("apple id and password are required")
)

// Credentials is a developer account.
type Credentials struct {
	AppleID  string `json:"apple_id"`
	Password string `json:"password"`
}

// Redacted returns the account name safe for logs.
func (c Credentials) Redacted() string {
	user, domain, ok := strings.Cut(c.AppleID, "@")
	if !ok || len(user) < 2 {
		return "***"
	}
	return user[:1] + "***@" + domain
}

// Store reads and writes the account in the vault.
type Store struct {
	vault keyring.Keyring
}

// NewStore wraps an already opened keyring.
func NewStore(vault keyring.Keyring) *Store {
	return &Store{vault: vault}
}

// Open opens (or creates) the credentials vault in dir. When password is
// empty and the file backend is used, the user is prompted for it.
func Open(dir, password string) (*Store, error) {
	vault, err := keyring.Open(keyring.Config{
		ServiceName:                    KeychainServiceName,
		KeychainSynchronizable:         false,
		KeychainAccessibleWhenUnlocked: true,
		KeychainTrustApplication:       true,
		FileDir:                        dir,
		FilePasswordFunc: func(string) (string, error) {
			if len(password) == 0 {
				msg := "Enter a password to decrypt your credentials vault: " + filepath.Join(dir, VaultName)
				if _, err := os.Stat(filepath.Join(dir, VaultName)); errors.Is(err, os.ErrNotExist) {
					msg = "Enter a password to encrypt your credentials to vault: " + filepath.Join(dir, VaultName)
				}
				prompt := &survey.Password{
					Message: msg,
				}
				if err := survey.AskOne(prompt, &password); err != nil {
					if err == terminal.InterruptErr {
						return "", fmt.Errorf("vault password prompt interrupted")
					}
					return "", err
				}
			}
			return password, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %s", err)
	}
	return NewStore(vault), nil
}

// Login saves creds, replacing any previous account.
func (s *Store) Login(creds Credentials) error {
	if creds.AppleID == "" || creds.Password == "" {
		return ErrInvalidCredentials
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %v", err)
	}
	if err := s.vault.Set(keyring.Item{
		Key:         VaultName,
		Data:        data,
		Label:       AppName,
		Description: "developer account",
	}); err != nil {
		return fmt.Errorf("failed to save credentials to vault: %v", err)
	}
	log.WithField("account", creds.Redacted()).Debug("Saved account to vault")
	return nil
}

// Logout removes the account.
func (s *Store) Logout() error {
	if _, err := s.vault.Get(VaultName); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return ErrNotLoggedIn
		}
		return fmt.Errorf("failed to read credentials from vault: %v", err)
	}
	if err := s.vault.Remove(VaultName); err != nil {
		return fmt.Errorf("failed to remove credentials from vault: %v", err)
	}
	return nil
}

// Session returns the stored account.
func (s *Store) Session() (*Credentials, error) {
	item, err := s.vault.Get(VaultName)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to read credentials from vault: %v", err)
	}
	var creds Credentials
	if err := json.Unmarshal(item.Data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vault credentials: %v", err)
	}
	return &creds, nil
}
