// Package store holds the persistence primitives shared by the SQL-backed
// envelope stores: the DBTX abstraction over *sql.DB and *sql.Tx, the
// transaction helper, and the sentinel errors store implementations map
// driver errors onto.
package store
