package cart

import (
	"errors"
	"os"
	"path/filepath"
)

// Storage is a small file-backed key-value store, one JSON blob per
// key. It stands in for the device-local storage the cart lives in:
// key cartItems_<pharmacy> maps to the serialized line array.
type Storage struct {
	dir string
}

// NewStorage creates the backing directory if needed.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Storage{dir: dir}, nil
}

func (s *Storage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get returns the stored value, or nil if the key is absent.
func (s *Storage) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// Set writes the value synchronously.
func (s *Storage) Set(key string, value []byte) error {
	return os.WriteFile(s.path(key), value, 0o644)
}

// Delete removes the key; deleting an absent key is not an error.
func (s *Storage) Delete(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
