// Package storage persists the subscription table and the audit log.
//
// Two drivers are available:
//   - "file": subscriptions as one indented JSON object, audit as JSON Lines
//   - "sqlite": a single SQLite database (pure-Go driver)
//
// Poll snapshots are deliberately not stored; they live in memory only.
package storage
