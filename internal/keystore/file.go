package keystore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FileStore reads a key from a file on disk.
type FileStore struct {
	path string
}

// Compile-time check to ensure FileStore implements KeyStore
var _ KeyStore = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path. The file is not opened until Read.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	return &FileStore{path: path}, nil
}

// Read returns the key after trimming whitespace. Returns error if the file
// doesn't exist, is empty, or is accessible by group or others.
func (f *FileStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(f.path)
	if err != nil {
		return "", err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return "", fmt.Errorf("insecure permissions on %s: %04o (expected 0600 or stricter)", f.path, perm)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", err
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("empty key file %s", f.path)
	}
	return key, nil
}
