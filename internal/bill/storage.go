package bill

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for bill photo storage
type Storage interface {
	// Save saves a file and returns the name to retrieve it by
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by name
	Get(name string) ([]byte, error)

	// Delete removes a file
	Delete(name string) error
}

// LocalStorage keeps bill photos in a directory
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the directory if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save writes data under filename. Names derive from upload filenames, so
// Save, Get and Delete all reduce them to a base name inside basePath.
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	name := filepath.Base(filename)
	if err := os.WriteFile(filepath.Join(l.basePath, name), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Get reads a stored photo
func (l *LocalStorage) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a stored photo
func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(filepath.Join(l.basePath, filepath.Base(name))); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
