//go:build cgo

package db

import (
	"database/sql"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func fileDialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}

func connDialector(driverName, dsn string, conn *sql.DB) gorm.Dialector {
	return sqlite.New(sqlite.Config{
		DriverName: driverName,
		DSN:        dsn,
		Conn:       conn,
	})
}
