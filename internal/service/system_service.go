package service

import (
	"context"
	"database/sql"

	"github.com/ndewijer/portfolio-valuation/internal/database"
)

// Version is the application version, overridden at build time with -ldflags.
var Version = "dev"

// VersionInfo describes the running binary and the schema of its database.
type VersionInfo struct {
	AppVersion      string `json:"app_version"`
	DbVersion       int64  `json:"db_version"`
	LatestDbVersion int64  `json:"latest_db_version"`
	MigrationNeeded bool   `json:"migration_needed"`
}

// SystemService handles system-related operations
type SystemService struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB, dialect database.Dialect) *SystemService {
	return &SystemService{
		db:      db,
		dialect: dialect,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// CheckVersion reports the application and schema versions.
func (s *SystemService) CheckVersion(ctx context.Context) (VersionInfo, error) {
	current, latest, err := database.SchemaVersion(ctx, s.db, s.dialect)
	if err != nil {
		return VersionInfo{}, err
	}

	return VersionInfo{
		AppVersion:      Version,
		DbVersion:       current,
		LatestDbVersion: latest,
		MigrationNeeded: current < latest,
	}, nil
}
