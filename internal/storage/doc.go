// Package storage provides the minimal persistence layer behind the settings
// store.
//
// It is a flat string key/value store with two drivers:
//   - "file": dependency-free snapshot + journal backend
//   - "sqlite": SQLite database file (build tag "sqlite")
package storage
