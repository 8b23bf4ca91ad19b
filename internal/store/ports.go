package store

import (
	"context"
	"errors"
)

// Keys of the persisted records.
const (
	KeyVisits         = "visits"
	KeyPurposeConfigs = "purpose_configs"
	KeyPurposeColors  = "purpose_colors"
)

var (
	ErrClosed       = errors.New("store closed")
	ErrInvalidValue = errors.New("value is not valid JSON")
)

// Ports implemented by the storage backends.
type (
	// Tx is the read-modify-write view handed to Update. Reads observe the
	// transaction's own writes.
	Tx interface {
		Get(key string) (value []byte, ok bool, err error)
		Put(key string, value []byte) error
	}

	// KV is a small key-value store of JSON documents.
	KV interface {
		// Get reads the committed value of key.
		Get(ctx context.Context, key string) (value []byte, ok bool, err error)
		// Update runs fn in one critical section. Writes made through tx are
		// committed together when fn returns nil and discarded otherwise.
		Update(ctx context.Context, fn func(tx Tx) error) error
		Close() error
	}
)
