// Package store is durable key-value storage for calibration values,
// with the namespaced get/set/commit semantics of an embedded NVS
// partition. Values live in memory until Commit flushes them to disk.
package store

// Store is a single namespace of u32 values.
type Store interface {
	// GetU32 returns the stored value and whether the key exists.
	GetU32(key string) (uint32, bool)
	// SetU32 stages a value in memory. It becomes durable on Commit.
	SetU32(key string, value uint32)
	// Commit flushes all staged values to durable storage.
	Commit() error
}
