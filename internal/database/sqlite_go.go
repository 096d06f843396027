//go:build !cgo

package database

import (
	"fmt"

	_ "github.com/glebarez/go-sqlite"
)

const sqliteDriverName = "sqlite"

func sqliteDSN(path string) string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}
