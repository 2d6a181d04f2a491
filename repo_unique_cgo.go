//go:build cgo

package auth

import (
	"github.com/goliatone/go-errors"
	"github.com/mattn/go-sqlite3"
)

func isCgoSQLiteUnique(err error) bool {
	var liteErr sqlite3.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
