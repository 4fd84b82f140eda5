//go:build cgo && sqlite3_cgo

package db

import (
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const driverID = "mattn/go-sqlite3"
const driverName = "sqlite3"

func connParams(busyTimeout time.Duration) string {
	return fmt.Sprintf("_txlock=immediate&_busy_timeout=%d&_foreign_keys=1", busyTimeout.Milliseconds())
}
