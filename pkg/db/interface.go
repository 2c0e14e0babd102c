package db

import "database/sql"

// DBProvider is implemented by clients that expose a sql.DB handle, so the
// Postgres and Supabase clients can serve as the same replication target.
type DBProvider interface {
	DB() *sql.DB
}
