package database

import (
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool creates a pgxmock pool for repository tests. The returned pool
// satisfies DBTX, so it can stand in for a real pgxpool in any repository
// constructor. Tests should call ExpectationsWereMet() before finishing.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool()
}
