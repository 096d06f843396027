//go:build cgo

package database

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteDriverName = "sqlite3"

func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
}
