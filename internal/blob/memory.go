package blob

import (
	fsstore "heredity/internal/infra/blob/fs"
	memorystore "heredity/internal/infra/blob/memory"
)

// NewMemory returns an in-memory blob.Store suitable for tests and one-shot runs.
func NewMemory() Store { return memorystore.New() }

// NewFilesystem returns a blob.Store rooted at dir, creating it if needed.
func NewFilesystem(dir string) (Store, error) {
	store, err := fsstore.New(dir)
	if err != nil {
		return nil, err
	}
	return store, nil
}
