// Package storage persists post attachments on the filesystem under a
// configurable media root. Files live at {root}/posts/{post_id}/{token}, one
// file per post, the directory created lazily on first upload.
package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no file exists for a post id and token.
var ErrNotFound = errors.New("attachment file not found")

// Store writes and reads attachment files below a media root directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at the given media directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) postDir(postID uint) string {
	return filepath.Join(s.root, "posts", strconv.FormatUint(uint64(postID), 10))
}

func (s *Store) filePath(postID uint, token string) string {
	return filepath.Join(s.postDir(postID), token)
}

// newToken returns an opaque storage token. It never derives from the
// uploaded filename, so unsafe characters in user input cannot reach a path.
func newToken() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Save streams an upload to disk and returns the generated token. The copy
// runs through a bounded buffer, so large uploads do not load wholesale into
// memory. A partially written file is removed on error.
func (s *Store) Save(postID uint, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.postDir(postID), 0o755); err != nil {
		return "", fmt.Errorf("create attachment dir: %w", err)
	}

	token := newToken()
	f, err := os.Create(s.filePath(postID, token))
	if err != nil {
		return "", fmt.Errorf("create attachment file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close attachment: %w", err)
	}
	return token, nil
}

// Open returns a reader over a stored attachment along with its size. A
// missing file yields ErrNotFound; a file that exists but cannot be opened
// yields the underlying error, wrapped. Callers treat the two differently.
func (s *Store) Open(postID uint, token string) (io.ReadCloser, int64, error) {
	path := s.filePath(postID, token)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("stat attachment: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open attachment: %w", err)
	}
	return f, info.Size(), nil
}

// Remove deletes a stored attachment file. Removing a file that is already
// gone is not an error.
func (s *Store) Remove(postID uint, token string) error {
	if err := os.Remove(s.filePath(postID, token)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}
