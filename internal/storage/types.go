package storage

import (
	"errors"
	"time"
)

var (
	ErrClosed     = errors.New("storage closed")
	ErrInvalidKey = errors.New("storage key is invalid")
)

// Config configures storage.
//
// Driver values:
//   - "file": Path is a directory (default "./data")
//   - "sqlite": Path is the database file
//   - "memory": Path is ignored
//
// An empty Driver means "file".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
