// Package db opens and migrates the Cadence database.
package db

import (
	"fmt"

	sqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cadencehq/cadence/internal/config"
)

// gormConfig silences GORM's logger and disables FK constraint creation:
// the cascade engine owns referential integrity, and migrated rows may hold
// legacy reference encodings a constraint would reject.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// MySQLDSN builds the DSN for a MySQL connection.
func MySQLDSN(dbc config.Database) string {
	c := sqldriver.NewConfig()
	c.User = dbc.User
	c.Passwd = dbc.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", dbc.Host, dbc.Port)
	c.DBName = dbc.Name
	c.ParseTime = true
	return c.FormatDSN()
}

// Open connects to the database described by the config, dispatching on the
// configured driver (sqlite for local use, mysql for shared deployments).
func Open(dbc config.Database) (*gorm.DB, error) {
	switch dbc.Driver {
	case "sqlite", "":
		gdb, err := gorm.Open(sqlite.Open(dbc.Path), gormConfig())
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite %s: %w", dbc.Path, err)
		}
		return gdb, nil
	case "mysql":
		gdb, err := gorm.Open(mysql.Open(MySQLDSN(dbc)), gormConfig())
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", dbc.Host, dbc.Port, dbc.Name, err)
		}
		return gdb, nil
	default:
		return nil, fmt.Errorf("db: unknown driver %q", dbc.Driver)
	}
}

// OpenMemory opens an in-memory sqlite database.
func OpenMemory() (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: open in-memory sqlite: %w", err)
	}
	return gdb, nil
}
