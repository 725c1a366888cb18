package client

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/filex"
)

// SaveToken writes token to path with owner-only permissions.
func SaveToken(path, token string) error {
	if _, err := filex.EnsureParentDir(path); err != nil {
		return err
	}
	return filex.WriteFileAtomic(path, []byte(token+"\n"), 0o600)
}

// LoadToken reads a token saved by SaveToken. A missing file yields
// ErrNotLoggedIn.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotLoggedIn
	}
	return token, nil
}

// DeleteToken removes the saved token. Removing a missing file succeeds.
func DeleteToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
