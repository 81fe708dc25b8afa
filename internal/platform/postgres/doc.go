// Package postgres persists work queue envelopes in PostgreSQL. It owns the
// schema (embedded goose migrations), the envelope store, and the mapping of
// driver errors onto the store package's sentinel errors.
//
// Queries stay within the SQL subset PostgreSQL shares with SQLite, so the
// package is tested against an in-memory SQLite database.
package postgres
