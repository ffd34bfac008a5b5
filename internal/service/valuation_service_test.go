package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation/internal/model"
	"github.com/ndewijer/portfolio-valuation/internal/service"
	"github.com/ndewijer/portfolio-valuation/internal/testutil"
)

// now is a Friday afternoon; "today" is 2024-03-15.
var now = time.Date(2024, 3, 15, 15, 30, 0, 0, time.UTC)

func today() time.Time {
	return model.Day(now)
}

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []model.PortfolioSnapshot
}

func (p *recordingPublisher) Publish(s model.PortfolioSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, s)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snapshots)
}

func setupValuation(t *testing.T, gw *testutil.MockGateway, opts ...service.Option) (*testutil.Services, model.Portfolio) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	opts = append([]service.Option{service.WithClock(testutil.FixedClock(now))}, opts...)
	svcs := testutil.NewTestServices(t, db, gw, opts...)
	portfolio := testutil.NewPortfolio().Build(t, db)
	return svcs, portfolio
}

// googSeries returns closes 130..138 for 2024-03-06 through 2024-03-14.
func googSeries() []model.PricePoint {
	return testutil.DailySeries(testutil.Date(2024, 3, 6),
		"130", "131", "132", "133", "134", "135", "136", "137", "138")
}

// TestValuationService_RecordLiveContribution tests valuing holdings bought today.
//
// WHY: Today's snapshot is shared by every symbol of the portfolio. Each contribution
// must land in its own entry and the total must always equal the sum of entries.
func TestValuationService_RecordLiveContribution(t *testing.T) {
	t.Run("contributions of different symbols add up", func(t *testing.T) {
		// Setup
		gw := testutil.NewMockGateway().WithQuote("AAPL", "151.20").WithQuote("MSFT", "299")
		svcs, portfolio := setupValuation(t, gw)
		ctx := context.Background()

		// Execute
		first, err := svcs.Valuation.RecordLiveContribution(ctx, portfolio.ID, "AAPL", testutil.Dec("10"), testutil.Dec("150"))
		require.NoError(t, err)
		second, err := svcs.Valuation.RecordLiveContribution(ctx, portfolio.ID, "MSFT", testutil.Dec("5"), testutil.Dec("300"))
		require.NoError(t, err)

		// Assert
		assert.True(t, first.TotalValue.Equal(testutil.Dec("1500")), "got %s", first.TotalValue)
		assert.True(t, second.TotalValue.Equal(testutil.Dec("3000")), "got %s", second.TotalValue)
		assert.Equal(t, []string{"AAPL", "MSFT"}, second.HoldingsData.Symbols())
		assert.True(t, second.Date.Equal(today()))

		stored, err := svcs.SnapshotRepo.Find(ctx, portfolio.ID, today())
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.True(t, stored.TotalValue.Equal(testutil.Dec("3000")))
		assert.True(t, stored.HoldingsData["AAPL"].Value.Equal(testutil.Dec("1500")))
		assert.True(t, stored.HoldingsData["MSFT"].Value.Equal(testutil.Dec("1500")))
	})

	t.Run("same symbol replaces its entry instead of accumulating", func(t *testing.T) {
		gw := testutil.NewMockGateway().WithQuote("AAPL", "150")
		svcs, portfolio := setupValuation(t, gw)
		ctx := context.Background()

		_, err := svcs.Valuation.RecordLiveContribution(ctx, portfolio.ID, "AAPL", testutil.Dec("10"), testutil.Dec("150"))
		require.NoError(t, err)
		snapshot, err := svcs.Valuation.RecordLiveContribution(ctx, portfolio.ID, "AAPL", testutil.Dec("20"), testutil.Dec("150"))
		require.NoError(t, err)

		assert.True(t, snapshot.TotalValue.Equal(testutil.Dec("3000")), "got %s", snapshot.TotalValue)
		assert.True(t, snapshot.HoldingsData["AAPL"].Shares.Equal(testutil.Dec("20")))
		assert.Len(t, snapshot.HoldingsData, 1)
	})

	t.Run("unavailable quote writes nothing", func(t *testing.T) {
		gw := testutil.NewMockGateway()
		svcs, portfolio := setupValuation(t, gw)

		_, err := svcs.Valuation.RecordLiveContribution(context.Background(), portfolio.ID, "NOPE", testutil.Dec("1"), testutil.Dec("10"))

		assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
		stored, err := svcs.SnapshotRepo.Find(context.Background(), portfolio.ID, today())
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("unknown portfolio", func(t *testing.T) {
		gw := testutil.NewMockGateway().WithQuote("AAPL", "150")
		svcs, _ := setupValuation(t, gw)

		_, err := svcs.Valuation.RecordLiveContribution(context.Background(), testutil.MakeID(), "AAPL", testutil.Dec("1"), testutil.Dec("150"))

		assert.ErrorIs(t, err, apperrors.ErrPortfolioNotFound)
		assert.Equal(t, 0, gw.QuoteCallCount("AAPL"))
	})

	t.Run("publishes the written snapshot", func(t *testing.T) {
		gw := testutil.NewMockGateway().WithQuote("AAPL", "150")
		publisher := &recordingPublisher{}
		svcs, portfolio := setupValuation(t, gw, service.WithPublisher(publisher))

		_, err := svcs.Valuation.RecordLiveContribution(context.Background(), portfolio.ID, "AAPL", testutil.Dec("2"), testutil.Dec("150"))

		require.NoError(t, err)
		require.Equal(t, 1, publisher.count())
		assert.Equal(t, portfolio.ID, publisher.snapshots[0].PortfolioID)
	})
}

// TestValuationService_RecordLiveContribution_Concurrent tests concurrent contributions
// to the same day.
//
// WHY: Two purchases submitted at the same moment must both survive. A read-modify-write
// race on the shared daily row would silently drop one symbol.
func TestValuationService_RecordLiveContribution_Concurrent(t *testing.T) {
	gw := testutil.NewMockGateway()
	const n = 8
	for i := 0; i < n; i++ {
		gw.WithQuote(fmt.Sprintf("SYM%d", i), "10")
	}
	svcs, portfolio := setupValuation(t, gw)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svcs.Valuation.RecordLiveContribution(context.Background(), portfolio.ID,
				fmt.Sprintf("SYM%d", i), testutil.Dec("1"), testutil.Dec("10"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := svcs.SnapshotRepo.Find(context.Background(), portfolio.ID, today())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.HoldingsData, n)
	assert.True(t, stored.TotalValue.Equal(testutil.Dec("80")), "got %s", stored.TotalValue)
}

// TestValuationService_BackfillHistoricalContribution tests valuing holdings bought in
// the past.
//
// WHY: A backfill must produce one snapshot per trading day from the purchase through
// today, each valued at that day's close, and must be all-or-nothing so a failed
// backfill never leaves a partial history.
func TestValuationService_BackfillHistoricalContribution(t *testing.T) {
	t.Run("writes every trading day and today from the live quote", func(t *testing.T) {
		// Setup
		gw := testutil.NewMockGateway().
			WithSeries("GOOG", googSeries()).
			WithQuote("GOOG", "140")
		svcs, portfolio := setupValuation(t, gw)
		ctx := context.Background()

		// Execute
		result, err := svcs.Valuation.BackfillHistoricalContribution(ctx, portfolio.ID, "GOOG",
			testutil.Dec("10"), testutil.Dec("125"), testutil.Date(2024, 3, 6))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 10, result.DatesWritten)
		assert.True(t, result.UsedLiveQuote)
		assert.True(t, result.FirstDate.Equal(testutil.Date(2024, 3, 6)))
		assert.True(t, result.LastDate.Equal(today()))

		snapshots, err := svcs.SnapshotRepo.Range(ctx, portfolio.ID, testutil.Date(2024, 3, 1), today())
		require.NoError(t, err)
		require.Len(t, snapshots, 10)
		assert.True(t, snapshots[0].TotalValue.Equal(testutil.Dec("1300")), "got %s", snapshots[0].TotalValue)
		assert.True(t, snapshots[8].TotalValue.Equal(testutil.Dec("1380")), "got %s", snapshots[8].TotalValue)
		assert.True(t, snapshots[9].TotalValue.Equal(testutil.Dec("1400")), "got %s", snapshots[9].TotalValue)
		assert.True(t, snapshots[9].Date.Equal(today()))
	})

	t.Run("uses today's close when the series has it", func(t *testing.T) {
		series := append(googSeries(), model.PricePoint{Date: today(), Price: testutil.Dec("139")})
		gw := testutil.NewMockGateway().WithSeries("GOOG", series)
		svcs, portfolio := setupValuation(t, gw)

		result, err := svcs.Valuation.BackfillHistoricalContribution(context.Background(), portfolio.ID, "GOOG",
			testutil.Dec("10"), testutil.Dec("125"), testutil.Date(2024, 3, 6))

		require.NoError(t, err)
		assert.False(t, result.UsedLiveQuote)
		assert.Equal(t, 0, gw.QuoteCallCount("GOOG"))

		latest, err := svcs.SnapshotRepo.Find(context.Background(), portfolio.ID, today())
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.True(t, latest.TotalValue.Equal(testutil.Dec("1390")))
	})

	t.Run("is idempotent", func(t *testing.T) {
		gw := testutil.NewMockGateway().WithSeries("GOOG", googSeries()).WithQuote("GOOG", "140")
		svcs, portfolio := setupValuation(t, gw)
		ctx := context.Background()

		_, err := svcs.Valuation.BackfillHistoricalContribution(ctx, portfolio.ID, "GOOG",
			testutil.Dec("10"), testutil.Dec("125"), testutil.Date(2024, 3, 6))
		require.NoError(t, err)
		first, err := svcs.Valuation.GetChartSeries(ctx, portfolio.ID, testutil.Date(2024, 3, 1), today())
		require.NoError(t, err)

		_, err = svcs.Valuation.BackfillHistoricalContribution(ctx, portfolio.ID, "GOOG",
			testutil.Dec("10"), testutil.Dec("125"), testutil.Date(2024, 3, 6))
		require.NoError(t, err)
		second, err := svcs.Valuation.GetChartSeries(ctx, portfolio.ID, testutil.Date(2024, 3, 1), today())
		require.NoError(t, err)

		require.Len(t, second, len(first))
		for i := range first {
			assert.Equal(t, first[i].Date, second[i].Date)
			assert.True(t, first[i].TotalValue.Equal(second[i].TotalValue))
		}
	})

	t.Run("merges with existing snapshots of other symbols", func(t *testing.T) {
		gw := testutil.NewMockGateway().
			WithSeries("GOOG", googSeries()).
			WithQuote("GOOG", "140").
			WithQuote("AAPL", "150")
		svcs, portfolio := setupValuation(t, gw)
		ctx := context.Background()

		_, err := svcs.Valuation.RecordLiveContribution(ctx, portfolio.ID, "AAPL", testutil.Dec("10"), testutil.Dec("150"))
		require.NoError(t, err)
		_, err = svcs.Valuation.BackfillHistoricalContribution(ctx, portfolio.ID, "GOOG",
			testutil.Dec("10"), testutil.Dec("125"), testutil.Date(2024, 3, 6))
		require.NoError(t, err)

		snapshot, err := svcs.Valuation.GetSnapshot(ctx, portfolio.ID, today())
		require.NoError(t, err)
		assert.True(t, snapshot.TotalValue.Equal(testutil.Dec("2900")), "got %s", snapshot.TotalValue)
	})

	t.Run("missing today quote writes nothing", func(t *testing.T) {
		gw := testutil.NewMockGateway().WithSeries("GOOG", googSeries())
		svcs, portfolio := setupValuation(t, gw)

		_, err := svcs.Valuation.BackfillHistoricalContribution(context.Background(), portfolio.ID, "GOOG",
			testutil.Dec("10"), testutil.Dec("125"), testutil.Date(2024, 3, 6))

		assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
		snapshots, err := svcs.SnapshotRepo.Range(context.Background(), portfolio.ID, testutil.Date(2024, 1, 1), today())
		require.NoError(t, err)
		assert.Empty(t, snapshots)
	})

	t.Run("no historical data", func(t *testing.T) {
		gw := testutil.NewMockGateway().WithQuote("GOOG", "140")
		svcs, portfolio := setupValuation(t, gw)

		_, err := svcs.Valuation.BackfillHistoricalContribution(context.Background(), portfolio.ID, "GOOG",
			testutil.Dec("10"), testutil.Dec("125"), testutil.Date(2024, 3, 6))

		assert.ErrorIs(t, err, apperrors.ErrNoHistoricalData)
	})

	t.Run("rejects today and future dates", func(t *testing.T) {
		gw := testutil.NewMockGateway().WithSeries("GOOG", googSeries()).WithQuote("GOOG", "140")
		svcs, portfolio := setupValuation(t, gw)

		for _, date := range []time.Time{now, today().AddDate(0, 0, 3)} {
			_, err := svcs.Valuation.BackfillHistoricalContribution(context.Background(), portfolio.ID, "GOOG",
				testutil.Dec("10"), testutil.Dec("125"), date)
			assert.ErrorIs(t, err, apperrors.ErrInvalidDate)
		}
		assert.Equal(t, 0, gw.SeriesCalls["GOOG"])
	})
}

// TestValuationService_OrderIndependence tests that the final snapshot of a day does not
// depend on the order contributions arrive in.
//
// WHY: Live purchases and backfills can be submitted in any order; readers must see the
// same total regardless.
func TestValuationService_OrderIndependence(t *testing.T) {
	newGateway := func() *testutil.MockGateway {
		return testutil.NewMockGateway().
			WithSeries("GOOG", googSeries()).
			WithQuote("GOOG", "140").
			WithQuote("AAPL", "150")
	}
	ctx := context.Background()

	live := func(svcs *testutil.Services, pid string) {
		_, err := svcs.Valuation.RecordLiveContribution(ctx, pid, "AAPL", testutil.Dec("3"), testutil.Dec("150"))
		require.NoError(t, err)
	}
	backfill := func(svcs *testutil.Services, pid string) {
		_, err := svcs.Valuation.BackfillHistoricalContribution(ctx, pid, "GOOG",
			testutil.Dec("4"), testutil.Dec("125"), testutil.Date(2024, 3, 11))
		require.NoError(t, err)
	}

	svcsA, portfolioA := setupValuation(t, newGateway())
	live(svcsA, portfolioA.ID)
	backfill(svcsA, portfolioA.ID)

	svcsB, portfolioB := setupValuation(t, newGateway())
	backfill(svcsB, portfolioB.ID)
	live(svcsB, portfolioB.ID)

	a, err := svcsA.Valuation.GetChartSeries(ctx, portfolioA.ID, testutil.Date(2024, 3, 1), today())
	require.NoError(t, err)
	b, err := svcsB.Valuation.GetChartSeries(ctx, portfolioB.ID, testutil.Date(2024, 3, 1), today())
	require.NoError(t, err)

	require.Len(t, a, 5)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Date, b[i].Date)
		assert.True(t, a[i].TotalValue.Equal(b[i].TotalValue), "%s: %s != %s", a[i].Date, a[i].TotalValue, b[i].TotalValue)
	}
	// 4 x 140 + 3 x 150
	assert.True(t, a[4].TotalValue.Equal(testutil.Dec("1010")))
}

// TestValuationService_GetChartSeries tests chart range queries.
func TestValuationService_GetChartSeries(t *testing.T) {
	t.Run("empty portfolio returns empty series", func(t *testing.T) {
		svcs, portfolio := setupValuation(t, testutil.NewMockGateway())

		points, err := svcs.Valuation.GetChartSeries(context.Background(), portfolio.ID, testutil.Date(2024, 1, 1), today())

		require.NoError(t, err)
		assert.NotNil(t, points)
		assert.Empty(t, points)
	})

	t.Run("start after end is rejected", func(t *testing.T) {
		svcs, portfolio := setupValuation(t, testutil.NewMockGateway())

		_, err := svcs.Valuation.GetChartSeries(context.Background(), portfolio.ID, today(), testutil.Date(2024, 1, 1))

		assert.ErrorIs(t, err, apperrors.ErrInvalidDateRange)
	})

	t.Run("range is inclusive and omits days without snapshots", func(t *testing.T) {
		gw := testutil.NewMockGateway().WithQuote("GOOG", "140").WithSeries("GOOG", []model.PricePoint{
			{Date: testutil.Date(2024, 3, 7), Price: testutil.Dec("100")},
			{Date: testutil.Date(2024, 3, 8), Price: testutil.Dec("101")},
			{Date: testutil.Date(2024, 3, 11), Price: testutil.Dec("102")},
		})
		svcs, portfolio := setupValuation(t, gw)
		ctx := context.Background()

		_, err := svcs.Valuation.BackfillHistoricalContribution(ctx, portfolio.ID, "GOOG",
			testutil.Dec("1"), testutil.Dec("99"), testutil.Date(2024, 3, 7))
		require.NoError(t, err)

		points, err := svcs.Valuation.GetChartSeries(ctx, portfolio.ID, testutil.Date(2024, 3, 8), testutil.Date(2024, 3, 11))

		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.Equal(t, "2024-03-08", points[0].Date)
		assert.Equal(t, "2024-03-11", points[1].Date)
		assert.True(t, points[1].TotalValue.Equal(testutil.Dec("102")))
	})
}

// TestValuationService_CorruptedSnapshot tests the handling of a stored breakdown that
// cannot be decoded.
//
// WHY: Treating an unreadable breakdown as empty would overwrite other symbols' values
// and understate the portfolio. The operation must fail and leave the row untouched.
func TestValuationService_CorruptedSnapshot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := testutil.NewMockGateway().WithQuote("AAPL", "150")
	svcs := testutil.NewTestServices(t, db, gw, service.WithClock(testutil.FixedClock(now)))
	portfolio := testutil.NewPortfolio().Build(t, db)
	testutil.InsertRawSnapshot(t, db, portfolio.ID, "2024-03-15", "500", `{"MSFT": {"price": "abc"}}`)

	_, err := svcs.Valuation.RecordLiveContribution(context.Background(), portfolio.ID, "AAPL", testutil.Dec("1"), testutil.Dec("150"))
	assert.ErrorIs(t, err, apperrors.ErrInconsistentAggregate)

	_, err = svcs.Valuation.GetChartSeries(context.Background(), portfolio.ID, testutil.Date(2024, 3, 1), today())
	assert.ErrorIs(t, err, apperrors.ErrInconsistentAggregate)

	var doc string
	require.NoError(t, db.QueryRow("SELECT holdings_data FROM portfolio_snapshot WHERE portfolio_id = ?", portfolio.ID).Scan(&doc))
	assert.Equal(t, `{"MSFT": {"price": "abc"}}`, doc)
}

// TestValuationService_GetSnapshot tests the per-day breakdown lookup.
func TestValuationService_GetSnapshot(t *testing.T) {
	gw := testutil.NewMockGateway().WithQuote("AAPL", "150")
	svcs, portfolio := setupValuation(t, gw)
	ctx := context.Background()

	_, err := svcs.Valuation.GetSnapshot(ctx, portfolio.ID, today())
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)

	_, err = svcs.Valuation.RecordLiveContribution(ctx, portfolio.ID, "AAPL", testutil.Dec("4"), testutil.Dec("150"))
	require.NoError(t, err)

	snapshot, err := svcs.Valuation.GetSnapshot(ctx, portfolio.ID, now)
	require.NoError(t, err)
	assert.True(t, snapshot.HoldingsData["AAPL"].Value.Equal(testutil.Dec("600")))
}
