package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/ndewijer/portfolio-valuation/internal/database"
)

// SetupTestDB creates an in-memory SQLite database with all migrations applied.
// The database is automatically closed when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	if _, err := database.Migrate(context.Background(), db, database.SQLite); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CleanDatabase removes all rows from every table, children before parents.
func CleanDatabase(t *testing.T, db *sql.DB) {
	t.Helper()

	tables := []string{
		"portfolio_snapshot",
		"holding",
		"portfolio",
	}

	for _, table := range tables {
		//nolint:gosec // G202: Table names are from hardcoded slice, no SQL injection risk
		query := "DELETE FROM " + table
		if _, err := db.Exec(query); err != nil {
			t.Fatalf("Failed to clean table %s: %v", table, err)
		}
	}
}

// CountRows returns the number of rows in a table.
//
// Example usage:
//
//	count := testutil.CountRows(t, db, "portfolio_snapshot")
func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var count int
	query := "SELECT COUNT(*) FROM " + table
	if err := db.QueryRow(query).Scan(&count); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}

	return count
}

// AssertRowCount asserts that a table has the expected number of rows.
func AssertRowCount(t *testing.T, db *sql.DB, table string, expected int) {
	t.Helper()

	actual := CountRows(t, db, table)
	if actual != expected {
		t.Errorf("Expected %d rows in %s, got %d", expected, table, actual)
	}
}

// InsertRawSnapshot writes a snapshot row as-is, bypassing the merge path.
// Used to simulate rows corrupted outside the application.
func InsertRawSnapshot(t *testing.T, db *sql.DB, portfolioID, date, totalValue, holdingsData string) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO portfolio_snapshot (id, portfolio_id, date, total_value, holdings_data, updated_at)
		VALUES (?, ?, ?, ?, ?, '2024-01-01T00:00:00.000000Z')
	`, MakeID(), portfolioID, date, totalValue, holdingsData)
	if err != nil {
		t.Fatalf("Failed to insert raw snapshot: %v", err)
	}
}
