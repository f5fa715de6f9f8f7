package data

import (
	"errors"
	"fmt"
	"sync"
)

// Standard errors shared between the facade, the mount tree and backend
// implementations. Backends should return these sentinels (optionally
// wrapped) so callers can match with errors.Is.
var (
	// Core taxonomy
	ErrInvalidPath      = errors.New("virtfs: invalid path format")
	ErrInvalidArgument  = errors.New("virtfs: invalid argument")
	ErrInvalidOperation = errors.New("virtfs: invalid operation")

	// Tree-level errors. All of them wrap ErrInvalidOperation so that
	// errors.Is(err, ErrInvalidOperation) holds for every mount conflict.
	ErrNotMounted     = fmt.Errorf("%w: path not mounted", ErrInvalidOperation)
	ErrAlreadyMounted = fmt.Errorf("%w: path already mounted", ErrInvalidOperation)
	ErrMountConflict  = fmt.Errorf("%w: conflicting nested mount", ErrInvalidOperation)

	// File operation errors, propagated verbatim through the facade.
	ErrNotExist          = errors.New("virtfs: file does not exist")
	ErrExist             = errors.New("virtfs: file already exists")
	ErrIsDirectory       = errors.New("virtfs: is a directory")
	ErrNotDirectory      = errors.New("virtfs: not a directory")
	ErrDirectoryNotEmpty = errors.New("virtfs: directory not empty")
	ErrPermission        = errors.New("virtfs: permission denied")
	ErrReadOnly          = errors.New("virtfs: read-only filesystem")

	// Mount lifecycle errors
	ErrMountFailed = errors.New("virtfs: mount initialization failed")

	// I/O errors
	ErrClosed = errors.New("virtfs: stream already closed")
)

type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
