package holdings

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vigil/internal/domain"
	vigiltesting "github.com/aristath/vigil/internal/testing"
)

func newTestRepository(t *testing.T) (*Repository, func()) {
	t.Helper()
	db, cleanup := vigiltesting.NewTestDB(t, "holdings")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, repo.SeedRules(DefaultRules()))
	return repo, cleanup
}

func sampleHolding(t *testing.T, repo *Repository) *domain.Holding {
	t.Helper()
	rule, err := repo.GetRule("SEC-13D")
	require.NoError(t, err)

	return &domain.Holding{
		Ticker:                 "ACME",
		Issuer:                 "Acme Corp",
		ISIN:                   "US000000ACME",
		Jurisdiction:           "US",
		SharesOwned:            4_600_000,
		TotalSharesOutstanding: 100_000_000,
		BuyingVelocity:         10_000,
		Price:                  42.5,
		Rule:                   rule,
		AssetStatus:            domain.AssetStatusOK,
		LastUpdated:            time.Now().UTC().Truncate(time.Second),
		Derivatives: []domain.DerivativePosition{
			{Type: domain.OptionCall, Contracts: 500, Delta: 0.6},
			{Type: domain.OptionPut, Contracts: 200, Delta: -0.4},
		},
	}
}

func TestSeedRules_Idempotent(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	// Seeding again must not fail or duplicate
	require.NoError(t, repo.SeedRules(DefaultRules()))

	rules, err := repo.ListRules()
	require.NoError(t, err)
	assert.Len(t, rules, len(DefaultRules()))
}

func TestUpsertAndGet_RoundTrip(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	holding := sampleHolding(t, repo)
	require.NoError(t, repo.Upsert(holding))

	got, err := repo.Get("ACME")
	require.NoError(t, err)

	assert.Equal(t, holding.Ticker, got.Ticker)
	assert.Equal(t, holding.SharesOwned, got.SharesOwned)
	assert.Equal(t, holding.Jurisdiction, got.Jurisdiction)
	require.NotNil(t, got.Rule)
	assert.Equal(t, "SEC-13D", got.Rule.Code)
	require.Len(t, got.Derivatives, 2)
	assert.Equal(t, domain.OptionCall, got.Derivatives[0].Type, "position order preserved")
	assert.Equal(t, domain.OptionPut, got.Derivatives[1].Type)
}

func TestUpsert_ReplacesDerivatives(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	holding := sampleHolding(t, repo)
	require.NoError(t, repo.Upsert(holding))

	holding.Derivatives = []domain.DerivativePosition{
		{Type: domain.OptionCall, Contracts: 100, Delta: 0.3},
	}
	require.NoError(t, repo.Upsert(holding))

	got, err := repo.Get("ACME")
	require.NoError(t, err)
	require.Len(t, got.Derivatives, 1)
	assert.Equal(t, 100, got.Derivatives[0].Contracts)
}

func TestGet_NotFound(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	_, err := repo.Get("MISSING")
	assert.ErrorIs(t, err, ErrHoldingNotFound)
}

func TestDelete(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	holding := sampleHolding(t, repo)
	require.NoError(t, repo.Upsert(holding))
	require.NoError(t, repo.Delete("ACME"))

	_, err := repo.Get("ACME")
	assert.ErrorIs(t, err, ErrHoldingNotFound)

	assert.ErrorIs(t, repo.Delete("ACME"), ErrHoldingNotFound)
}

func TestLoadAll(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	for _, holding := range vigiltesting.NewHoldingFixtures() {
		require.NoError(t, repo.Upsert(holding))
	}

	holdings, err := repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, holdings, 2)

	// Ordered by ticker, rules and derivatives attached
	assert.Equal(t, "AAPL", holdings[0].Ticker)
	assert.Equal(t, "VOD", holdings[1].Ticker)
	require.NotNil(t, holdings[1].Rule)
	assert.Equal(t, "FCA-TR1", holdings[1].Rule.Code)
	assert.Len(t, holdings[1].Derivatives, 1)
}
