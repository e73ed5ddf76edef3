// Package storage persists tick history so operators can see what fired
// across restarts.
//
// Drivers:
//   - "file": JSON Lines, no external dependencies
//   - "sqlite": a SQLite database file (modernc.org/sqlite, pure Go)
package storage
