package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation/internal/testutil"
)

// TestPortfolioService_CreatePortfolio tests portfolio creation.
//
// WHY: Every valuation is keyed by portfolio, and ownership decides who may read it.
// A created portfolio must be retrievable by its owner with the fields it was given.
func TestPortfolioService_CreatePortfolio(t *testing.T) {
	t.Run("creates portfolio owned by the caller", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svcs := testutil.NewTestServices(t, db, testutil.NewMockGateway())

		// Execute
		created, err := svcs.Portfolios.CreatePortfolio(context.Background(), "alice", "  Growth  ", "long term")

		// Assert
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "alice", created.OwnerID)
		assert.Equal(t, "Growth", created.Name)

		fetched, err := svcs.Portfolios.GetOwnedPortfolio(context.Background(), "alice", created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Name, fetched.Name)
		assert.Equal(t, "long term", fetched.Description)
		testutil.AssertRowCount(t, db, "portfolio", 1)
	})

	t.Run("requires an owner", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svcs := testutil.NewTestServices(t, db, testutil.NewMockGateway())

		_, err := svcs.Portfolios.CreatePortfolio(context.Background(), " ", "Growth", "")

		assert.ErrorIs(t, err, apperrors.ErrMissingUser)
		testutil.AssertRowCount(t, db, "portfolio", 0)
	})
}

// TestPortfolioService_GetOwnedPortfolio tests ownership scoping.
//
// WHY: Portfolios of other users must be indistinguishable from missing ones so that
// portfolio IDs cannot be probed.
func TestPortfolioService_GetOwnedPortfolio(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svcs := testutil.NewTestServices(t, db, testutil.NewMockGateway())
	portfolio := testutil.NewPortfolio().WithOwner("alice").Build(t, db)

	tests := []struct {
		name        string
		ownerID     string
		portfolioID string
		wantErr     error
	}{
		{name: "owner can read", ownerID: "alice", portfolioID: portfolio.ID},
		{name: "other user sees not found", ownerID: "bob", portfolioID: portfolio.ID, wantErr: apperrors.ErrPortfolioNotFound},
		{name: "unknown id", ownerID: "alice", portfolioID: testutil.MakeID(), wantErr: apperrors.ErrPortfolioNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svcs.Portfolios.GetOwnedPortfolio(context.Background(), tt.ownerID, tt.portfolioID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, portfolio.ID, got.ID)
		})
	}
}

// TestPortfolioService_GetPortfoliosByOwner tests listing.
func TestPortfolioService_GetPortfoliosByOwner(t *testing.T) {
	t.Run("returns empty slice when the user has none", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svcs := testutil.NewTestServices(t, db, testutil.NewMockGateway())

		portfolios, err := svcs.Portfolios.GetPortfoliosByOwner(context.Background(), "nobody")

		require.NoError(t, err)
		assert.NotNil(t, portfolios)
		assert.Empty(t, portfolios)
	})

	t.Run("returns only the caller's portfolios", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svcs := testutil.NewTestServices(t, db, testutil.NewMockGateway())
		testutil.NewPortfolio().WithOwner("alice").WithName("A1").Build(t, db)
		testutil.NewPortfolio().WithOwner("alice").WithName("A2").Build(t, db)
		testutil.NewPortfolio().WithOwner("bob").WithName("B1").Build(t, db)

		portfolios, err := svcs.Portfolios.GetPortfoliosByOwner(context.Background(), "alice")

		require.NoError(t, err)
		require.Len(t, portfolios, 2)
		for _, p := range portfolios {
			assert.Equal(t, "alice", p.OwnerID)
		}
	})

	t.Run("handles closed database connection", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svcs := testutil.NewTestServices(t, db, testutil.NewMockGateway())
		db.Close()

		portfolios, err := svcs.Portfolios.GetPortfoliosByOwner(context.Background(), "alice")

		assert.Error(t, err)
		assert.Nil(t, portfolios)
	})
}
