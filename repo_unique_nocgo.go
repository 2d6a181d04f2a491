//go:build !cgo

package auth

// mattn/go-sqlite3 is a stub without cgo and never returns its typed error.
func isCgoSQLiteUnique(error) bool {
	return false
}
