// Package store opens the pooled connection sources behind each registered
// database and prepares the tables the runtime itself owns.
//
// # Connection Sources
//
// database/sql owns pooling; Open only applies pool limits and verifies the
// source with a ping. SQLite DSNs built by SQLiteDSN run in WAL journal mode
// with synchronous=NORMAL, a five second busy timeout and foreign keys
// enforced, so the producer of a paged select can read while another
// connection writes.
//
// # Id Table
//
// EnsureIDTable creates the block reservation table used by the id broker
// (internal/idgen). The DDL is embedded from idtable.sql.
package store
