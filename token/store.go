package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DefaultFile is where the token is cached when no path is configured.
const DefaultFile = "./.accesstoken.json"

// Store persists a single AccessToken as one JSON object in a local file.
type Store struct {
	path string
	log  *zap.SugaredLogger
}

// NewStore returns a Store for path (DefaultFile when empty). A nil logger disables logging.
func NewStore(path string, log *zap.SugaredLogger) *Store {
	if path == "" {
		path = DefaultFile
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{path: path, log: log}
}

// Path returns the token file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the cached token, or nil when the file is missing, unreadable
// or malformed. Read failures are logged and never returned.
func (s *Store) Load() *AccessToken {
	tok, err := s.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Debugw("no cached token", "path", s.path)
		} else {
			s.log.Warnw("ignoring unreadable token file", "path", s.path, "error", err)
		}
		return nil
	}
	return tok
}

func (s *Store) read() (*AccessToken, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var tok AccessToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token file has no access_token")
	}
	return &tok, nil
}

// IsExpired reports whether tok is at or past its expiry at now.
func (s *Store) IsExpired(tok *AccessToken, now time.Time) bool {
	return tok.IsExpired(now)
}

// Save stamps created_at with now, overwriting any value the provider sent,
// writes the whole record and returns the stamped copy.
func (s *Store) Save(tok *AccessToken, now time.Time) (*AccessToken, error) {
	stamped := *tok
	stamped.CreatedAt = now.UnixMilli()

	data, err := json.MarshalIndent(&stamped, "", "  ")
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create token dir: %w", err)
		}
	}

	lock, err := acquireFileLock(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			s.log.Warnw("failed to release token file lock", "path", s.path, "error", releaseErr)
		}
	}()

	// Write to temp file first, then rename over the old file.
	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return nil, fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return nil, fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.log.Debugw("token saved", "path", s.path, "expires_at", stamped.ExpiresAt())
	return &stamped, nil
}
