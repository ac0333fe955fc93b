package spotify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

const (
	credentialDirName  = "spotify-rework"
	credentialFileName = "auth.enc"
)

// Store persists the single encrypted credential artifact on the local
// filesystem. It owns the on-disk copy of the AuthState; callers serialize
// access (the manager never issues concurrent writes).
type Store struct {
	dir    string
	cipher *Cipher
}

// NewStore creates a credential store rooted at dir. An empty dir selects the
// OS-standard application data directory.
func NewStore(dir string, cipher *Cipher) *Store {
	return &Store{dir: dir, cipher: cipher}
}

// DefaultDir resolves the OS-appropriate application data directory for the
// credential file.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", authErrorf(ErrStorage, "could not determine data directory: %w", err)
	}
	return filepath.Join(base, credentialDirName), nil
}

func (s *Store) filePath() (string, error) {
	dir := s.dir
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, credentialFileName), nil
}

// Save serializes state, encrypts it, and writes it over any previous
// artifact. The parent directory is created on demand.
func (s *Store) Save(state *AuthState) error {
	path, err := s.filePath()
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return authErrorf(ErrStorage, "failed to create directory: %w", err)
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return authErrorf(ErrStorage, "failed to serialize auth state: %w", err)
	}

	sealed, err := s.cipher.Encrypt(string(raw))
	if err != nil {
		return err
	}

	if err = os.WriteFile(path, []byte(sealed), 0o600); err != nil {
		return authErrorf(ErrStorage, "failed to write file: %w", err)
	}

	log.Debugf("Auth state saved to %s", path)
	return nil
}

// Load reads and decrypts the stored AuthState. A missing file yields
// (nil, nil); a file that cannot be decrypted or decoded is a storage error,
// never treated as absent, so corruption stays visible.
func (s *Store) Load() (*AuthState, error) {
	path, err := s.filePath()
	if err != nil {
		return nil, err
	}

	sealed, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, authErrorf(ErrStorage, "failed to read file: %w", err)
	}

	raw, err := s.cipher.Decrypt(string(sealed))
	if err != nil {
		return nil, NewAuthError(ErrStorage, fmt.Errorf("credential file unreadable: %w", err))
	}

	var state AuthState
	if err = json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, authErrorf(ErrStorage, "failed to deserialize auth state: %w", err)
	}

	log.Debugf("Auth state loaded from %s", path)
	return &state, nil
}

// Delete removes the credential artifact. Absence is not an error.
func (s *Store) Delete() error {
	path, err := s.filePath()
	if err != nil {
		return err
	}
	if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
		return authErrorf(ErrStorage, "failed to delete file: %w", err)
	}
	return nil
}

// Exists reports whether a credential artifact is present on disk. It is a
// cheap stat check, not a validity check.
func (s *Store) Exists() bool {
	path, err := s.filePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
