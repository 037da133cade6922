// Package stores provides the SQLite-backed persistence layer for server
// records and the audit trail.
package stores
