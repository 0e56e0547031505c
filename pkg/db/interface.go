package db

import "database/sql"

// SQLSource is a connected client whose database/sql handle the analysis
// archive writes through. PostgresClient and SupabaseClient (in direct mode)
// both qualify.
type SQLSource interface {
	DB() *sql.DB
}
