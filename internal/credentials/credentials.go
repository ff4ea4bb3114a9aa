// Package credentials persists a login token bundle to a single JSON
// file, letting the gateway decide between a fresh username/password
// login and a cached-token login across process restarts.
package credentials

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"torrentstream/internal/domain/ports"
)

// FileCache is a ports.CredentialCache backed by one JSON file on disk.
type FileCache struct {
	path string
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

type tokenDoc struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// Load reads the cached token bundle. A missing file is not an error: it
// reports found=false so the caller falls back to a fresh login.
func (c *FileCache) Load() (ports.Credentials, bool, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return ports.Credentials{}, false, nil
	}
	if err != nil {
		return ports.Credentials{}, false, err
	}

	var doc tokenDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return ports.Credentials{}, false, err
	}
	return ports.Credentials{
		Username:     doc.Username,
		Password:     doc.Password,
		AccessToken:  doc.AccessToken,
		RefreshToken: doc.RefreshToken,
		UserID:       doc.UserID,
	}, true, nil
}

// Save writes the token bundle, creating its parent directory if needed.
// The file is written with 0o600 permissions since it carries a
// plaintext password and bearer tokens.
func (c *FileCache) Save(creds ports.Credentials) error {
	doc := tokenDoc{
		Username:     creds.Username,
		Password:     creds.Password,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		UserID:       creds.UserID,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(c.path, data, 0o600)
}
