// Package store makes exchange state durable.
//
// It provides three pieces:
//   - FileStore: the canonical JSON state file, replaced atomically on save
//     (temp file + fsync + rename) and decoded leniently on load.
//   - Writer: a single-goroutine FIFO in front of FileStore; implements
//     exchange.Persister so every mutation waits for its own write.
//   - AuditLog: an optional SQLite log of every commit that reached disk.
//
// # State File
//
//	{
//	  "participants": [
//	    {"token": "...", "name": "...", "assignmentToken": null,
//	     "registeredAt": "2026-12-01T18:00:00.000Z", "ipAddress": null}
//	  ],
//	  "assignmentsReady": false,
//	  "lastShuffledAt": null,
//	  "registrationOpen": true
//	}
//
// # Load Policy
//
// A missing file means a fresh exchange. A file that is not valid JSON is a
// startup error. Inside a valid file, malformed participant records are
// dropped rather than failing the load, and state that violates exchange
// invariants is repaired with exchange.Sanitize.
//
// # Audit Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
