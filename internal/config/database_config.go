package config

import "strings"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig interface {
	GetDatabaseDriver() string
	GetDatabaseURL() string
	GetSQLitePath() string
}

type Database struct{}

var _ DatabaseConfig = Database{}

// GetDatabaseDriver returns postgres or sqlite. Defaults to sqlite unless DATABASE_URL is set.
func (d Database) GetDatabaseDriver() string {
	driver := strings.ToLower(GetEnv("DATABASE_DRIVER", ""))
	if driver == "" {
		if d.GetDatabaseURL() != "" {
			return DriverPostgres
		}
		return DriverSQLite
	}
	return driver
}

func (Database) GetDatabaseURL() string {
	return GetEnv("DATABASE_URL", "")
}

func (Database) GetSQLitePath() string {
	return GetEnv("SQLITE_PATH", "./data/admissions.db")
}
