package store

import "database/sql"

// SQL exposes the internal *sql.DB for tests in store_test.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// SetOpenDB swaps the driver open function and returns a restore func.
func SetOpenDB(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	prev := openDB
	openDB = fn
	return func() { openDB = prev }
}
