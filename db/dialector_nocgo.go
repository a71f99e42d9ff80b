//go:build !cgo

package db

import (
	"database/sql"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Without cgo the pure Go driver serves local files.

func fileDialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}

func connDialector(driverName, dsn string, conn *sql.DB) gorm.Dialector {
	return &sqlite.Dialector{
		DriverName: driverName,
		DSN:        dsn,
		Conn:       conn,
	}
}
