// Package storage defines the key-value contract the local database implements.
//
// Implementations live in subpackages: leveldb (on disk or in memory) and encrypted
// (a wrapper sealing every value with the database encryption key).
package storage

import "errors"

// ErrDataNotFound is returned when a key has no value.
var ErrDataNotFound = errors.New("data not found")

// ErrClosed is returned by stores whose provider was closed.
var ErrClosed = errors.New("storage closed")

// Provider opens named stores that share one underlying database.
type Provider interface {
	// OpenStore opens a store with given name space and returns the handle.
	OpenStore(name string) (Store, error)

	// Close closes all stores created under this provider.
	Close() error
}

// Store is a single name space.
type Store interface {
	// Put stores the key and the record.
	Put(k string, v []byte) error

	// Get fetches the record based on key. It returns ErrDataNotFound when absent.
	Get(k string) ([]byte, error)

	// Delete removes the record. Deleting a missing key is not an error.
	Delete(k string) error

	// Keys lists keys starting with prefix, in ascending order.
	Keys(prefix string) ([]string, error)
}
