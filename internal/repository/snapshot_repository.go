package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation/internal/database"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

// SnapshotRepository provides data access methods for the portfolio_snapshot table.
//
// The table holds at most one row per (portfolio, date), enforced by a unique constraint.
// Every write goes through the same merge path: inside a transaction the row is claimed
// (inserted empty if missing), read under a write lock, merged with the patch symbol by
// symbol, re-summed, and written back. Concurrent writers to the same row therefore
// serialize, and contributions for different symbols are never lost.
type SnapshotRepository struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

// NewSnapshotRepository creates a new SnapshotRepository with the provided database connection.
func NewSnapshotRepository(db *sql.DB, dialect database.Dialect) *SnapshotRepository {
	return &SnapshotRepository{db: db, dialect: dialect, now: time.Now}
}

// Find returns the snapshot of a portfolio for one UTC day, or nil if none exists.
// Returns ErrInconsistentAggregate if the stored row cannot be decoded.
func (r *SnapshotRepository) Find(ctx context.Context, portfolioID string, date time.Time) (*model.PortfolioSnapshot, error) {
	query := `
		SELECT id, portfolio_id, date, total_value, holdings_data
		FROM portfolio_snapshot
		WHERE portfolio_id = ? AND date = ?
	`

	snapshot, err := scanSnapshot(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), portfolioID, formatDate(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &snapshot, nil
}

// Upsert merges patch into the snapshot of (portfolioID, date), creating the row if needed,
// and returns the stored result. Each symbol in patch replaces the existing entry for that
// symbol; other symbols are kept. The total is recomputed from the merged entries.
func (r *SnapshotRepository) Upsert(ctx context.Context, portfolioID string, date time.Time, patch model.HoldingsData) (model.PortfolioSnapshot, error) {
	var result model.PortfolioSnapshot

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		result, err = r.upsertTx(ctx, tx, portfolioID, date, patch, model.HoldingsData.Merge)
		return err
	})
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	return result, nil
}

// CarryForward adds the entries of patch for symbols the snapshot of (portfolioID, date)
// does not hold yet, creating the row if needed. Entries already written for that day are
// left untouched, so a purchase recorded today keeps its own price. The check and the
// write happen in one transaction.
func (r *SnapshotRepository) CarryForward(ctx context.Context, portfolioID string, date time.Time, patch model.HoldingsData) (model.PortfolioSnapshot, error) {
	var result model.PortfolioSnapshot

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		result, err = r.upsertTx(ctx, tx, portfolioID, date, patch, model.HoldingsData.FillMissing)
		return err
	})
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	return result, nil
}

// UpsertBatch applies the Upsert merge to each contribution in ascending date order inside
// a single transaction. Either every date is written or none is.
// Contributions are expected in ascending date order; they are written in the order given.
func (r *SnapshotRepository) UpsertBatch(ctx context.Context, portfolioID string, contributions []model.DatedContribution) ([]model.PortfolioSnapshot, error) {
	results := make([]model.PortfolioSnapshot, 0, len(contributions))
	if len(contributions) == 0 {
		return results, nil
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, c := range contributions {
			snapshot, err := r.upsertTx(ctx, tx, portfolioID, c.Date, c.Patch, model.HoldingsData.Merge)
			if err != nil {
				return err
			}
			results = append(results, snapshot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

func (r *SnapshotRepository) upsertTx(
	ctx context.Context,
	tx *sql.Tx,
	portfolioID string,
	date time.Time,
	patch model.HoldingsData,
	merge func(existing, patch model.HoldingsData) model.HoldingsData,
) (model.PortfolioSnapshot, error) {
	dateStr := formatDate(date)
	now := formatTimestamp(r.now())

	claim := `
		INSERT INTO portfolio_snapshot (id, portfolio_id, date, total_value, holdings_data, updated_at)
		VALUES (?, ?, ?, '0', '{}', ?)
		ON CONFLICT (portfolio_id, date) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(claim), uuid.New().String(), portfolioID, dateStr, now); err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("failed to claim snapshot %s/%s: %w", portfolioID, dateStr, err)
	}

	read := `
		SELECT id, portfolio_id, date, total_value, holdings_data
		FROM portfolio_snapshot
		WHERE portfolio_id = ? AND date = ?` + r.dialect.LockClause()

	existing, err := scanSnapshot(tx.QueryRowContext(ctx, r.dialect.Rebind(read), portfolioID, dateStr))
	if err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("failed to read snapshot %s/%s: %w", portfolioID, dateStr, err)
	}

	merged := merge(existing.HoldingsData, patch)
	total := merged.Total()

	doc, err := merged.Encode()
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	update := `
		UPDATE portfolio_snapshot
		SET total_value = ?, holdings_data = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(update), total.String(), string(doc), now, existing.ID); err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("failed to update snapshot %s/%s: %w", portfolioID, dateStr, err)
	}

	existing.TotalValue = total
	existing.HoldingsData = merged
	return existing, nil
}

// Range returns the snapshots of a portfolio with start <= date <= end, ascending by date.
// Days without a snapshot are absent from the result. Returns an empty slice, never nil.
func (r *SnapshotRepository) Range(ctx context.Context, portfolioID string, start, end time.Time) ([]model.PortfolioSnapshot, error) {
	snapshots := []model.PortfolioSnapshot{}

	err := r.StreamRange(ctx, portfolioID, start, end, func(s model.PortfolioSnapshot) error {
		snapshots = append(snapshots, s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshots, nil
}

// StreamRange is Range with a callback per row, for callers that do not need the whole
// result in memory. Iteration stops at the first callback error, which is returned.
func (r *SnapshotRepository) StreamRange(
	ctx context.Context,
	portfolioID string,
	start, end time.Time,
	callback func(snapshot model.PortfolioSnapshot) error,
) error {
	query := `
		SELECT id, portfolio_id, date, total_value, holdings_data
		FROM portfolio_snapshot
		WHERE portfolio_id = ?
		AND date >= ?
		AND date <= ?
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), portfolioID, formatDate(start), formatDate(end))
	if err != nil {
		return fmt.Errorf("failed to query portfolio_snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return err
		}

		if err := callback(snapshot); err != nil {
			return err
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}

	return nil
}

// LatestBefore returns, for every portfolio with snapshots dated strictly before the given
// day, its most recent such snapshot, ordered by portfolio ID.
//
// A row that cannot be decoded does not fail the call: its error is returned in broken,
// keyed by portfolio ID, and the other portfolios are still loaded.
func (r *SnapshotRepository) LatestBefore(ctx context.Context, before time.Time) ([]model.PortfolioSnapshot, map[string]error, error) {
	query := `
		SELECT s.id, s.portfolio_id, s.date, s.total_value, s.holdings_data
		FROM portfolio_snapshot s
		WHERE s.date = (
			SELECT MAX(prior.date)
			FROM portfolio_snapshot prior
			WHERE prior.portfolio_id = s.portfolio_id
			AND prior.date < ?
		)
		ORDER BY s.portfolio_id ASC
	`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), formatDate(before))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	defer rows.Close()

	latest := []model.PortfolioSnapshot{}
	broken := map[string]error{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, nil, err
		}

		snapshot, err := row.decode()
		if err != nil {
			broken[row.portfolioID] = err
			continue
		}
		latest = append(latest, snapshot)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return latest, broken, nil
}

// snapshotRow is a portfolio_snapshot row before its breakdown is decoded.
type snapshotRow struct {
	id, portfolioID, date, total, doc string
}

// scanRow reads one row without interpreting it. sql.ErrNoRows is passed through unwrapped.
func scanRow(row rowScanner) (snapshotRow, error) {
	var raw snapshotRow

	err := row.Scan(&raw.id, &raw.portfolioID, &raw.date, &raw.total, &raw.doc)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshotRow{}, err
	}
	if err != nil {
		return snapshotRow{}, fmt.Errorf("failed to scan row: %w", err)
	}

	return raw, nil
}

// decode interprets a row. A breakdown that fails to decode, a total that is not a
// number, or a total that disagrees with the sum of its entries is reported as
// ErrInconsistentAggregate.
func (raw snapshotRow) decode() (model.PortfolioSnapshot, error) {
	s := model.PortfolioSnapshot{ID: raw.id, PortfolioID: raw.portfolioID}

	var err error
	if s.Date, err = ParseTime(raw.date); err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("snapshot %s/%s: %w: bad date: %v", raw.portfolioID, raw.date, apperrors.ErrInconsistentAggregate, err)
	}

	if s.HoldingsData, err = model.DecodeHoldingsData([]byte(raw.doc)); err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("snapshot %s/%s: %w", raw.portfolioID, raw.date, err)
	}

	if s.TotalValue, err = parseDecimal("total_value", raw.total); err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("snapshot %s/%s: %w: %v", raw.portfolioID, raw.date, apperrors.ErrInconsistentAggregate, err)
	}

	if !s.TotalValue.Equal(s.HoldingsData.Total()) {
		return model.PortfolioSnapshot{}, fmt.Errorf("snapshot %s/%s: %w: total %s does not match entries %s",
			raw.portfolioID, raw.date, apperrors.ErrInconsistentAggregate, s.TotalValue, s.HoldingsData.Total())
	}

	return s, nil
}

// scanSnapshot reads and decodes one row. sql.ErrNoRows is passed through unwrapped.
func scanSnapshot(row rowScanner) (model.PortfolioSnapshot, error) {
	raw, err := scanRow(row)
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}
	return raw.decode()
}
