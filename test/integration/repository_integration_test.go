//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/adapters/postgres"
	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/internal/domain/ports"
	"github.com/kevin07696/nmi-gateway/pkg/timeutil"
	"github.com/kevin07696/nmi-gateway/test/integration/testdb"
)

func TestTokenRepositoryIntegration(t *testing.T) {
	pool := testdb.SetupTestDB(t)
	defer testdb.TeardownTestDB(t, pool)

	ctx := context.Background()
	repo := postgres.NewTokenRepository(postgres.NewDBExecutor(pool), zap.NewNop())

	token := &domain.PaymentToken{
		UserID:          42,
		VaultCustomerID: "vault-abc",
		Environment:     domain.EnvironmentSandbox,
		LastFour:        "1111",
		Brand:           "visa",
		ExpMonth:        "12",
		ExpYear:         "2030",
	}

	stored, err := repo.Upsert(ctx, token)
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())

	t.Run("upsert same vault id updates in place", func(t *testing.T) {
		again, err := repo.Upsert(ctx, &domain.PaymentToken{
			UserID:          42,
			VaultCustomerID: "vault-abc",
			Environment:     domain.EnvironmentSandbox,
			LastFour:        "1111",
			Brand:           "visa",
			ExpMonth:        "01",
			ExpYear:         "2032",
		})
		require.NoError(t, err)
		assert.Equal(t, stored.ID, again.ID)

		tokens, err := repo.ListByUser(ctx, 42, domain.EnvironmentSandbox)
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, "2032", tokens[0].ExpYear)
	})

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, "vault-abc", got.VaultCustomerID)
		assert.Equal(t, domain.EnvironmentSandbox, got.Environment)

		_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	})

	t.Run("list is partitioned by environment", func(t *testing.T) {
		_, err := repo.Upsert(ctx, &domain.PaymentToken{
			UserID:          42,
			VaultCustomerID: "vault-prod",
			Environment:     domain.EnvironmentProduction,
			LastFour:        "4242",
			Brand:           "visa",
		})
		require.NoError(t, err)

		sandbox, err := repo.ListByUser(ctx, 42, domain.EnvironmentSandbox)
		require.NoError(t, err)
		require.Len(t, sandbox, 1)
		assert.Equal(t, "vault-abc", sandbox[0].VaultCustomerID)

		production, err := repo.ListByUser(ctx, 42, domain.EnvironmentProduction)
		require.NoError(t, err)
		require.Len(t, production, 1)
		assert.Equal(t, "vault-prod", production[0].VaultCustomerID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, stored.ID))
		assert.ErrorIs(t, repo.Delete(ctx, stored.ID), domain.ErrTokenNotFound)
	})
}

func TestRetryRepositoryIntegration(t *testing.T) {
	pool := testdb.SetupTestDB(t)
	defer testdb.TeardownTestDB(t, pool)

	ctx := context.Background()
	repo := postgres.NewRetryRepository(postgres.NewDBExecutor(pool), zap.NewNop())
	week := timeutil.WeekKey(time.Now())

	t.Run("missing row counts as zero", func(t *testing.T) {
		count, err := repo.Count(ctx, ports.RetryScopeOrder, "order-1", week)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("increment returns the running count", func(t *testing.T) {
		for want := 1; want <= 3; want++ {
			count, err := repo.Increment(ctx, ports.RetryScopeOrder, "order-1", week)
			require.NoError(t, err)
			assert.Equal(t, want, count)
		}

		count, err := repo.Count(ctx, ports.RetryScopeOrder, "order-1", week)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("scopes are independent", func(t *testing.T) {
		count, err := repo.Increment(ctx, ports.RetryScopeUser, "order-1", week)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		orderCount, err := repo.Count(ctx, ports.RetryScopeOrder, "order-1", week)
		require.NoError(t, err)
		assert.Equal(t, 3, orderCount)
	})

	t.Run("prune removes only stale rows", func(t *testing.T) {
		_, err := pool.Exec(ctx, `
			INSERT INTO payment_retries (scope, subject_id, week_key, count, updated_at)
			VALUES ('order', 'order-old', 'week_01', 5, now() - interval '60 days')`)
		require.NoError(t, err)

		deleted, err := repo.PruneStale(ctx, 28*24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		count, err := repo.Count(ctx, ports.RetryScopeOrder, "order-1", week)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestOrderRepositoryIntegration(t *testing.T) {
	pool := testdb.SetupTestDB(t)
	defer testdb.TeardownTestDB(t, pool)

	ctx := context.Background()
	repo := postgres.NewOrderRepository(postgres.NewDBExecutor(pool), zap.NewNop())

	_, err := pool.Exec(ctx, `
		INSERT INTO orders (id, number, user_id, total, currency)
		VALUES ('order-1', '1001', 42, 25.50, 'USD')`)
	require.NoError(t, err)

	t.Run("meta round trip", func(t *testing.T) {
		require.NoError(t, repo.SetMeta(ctx, "order-1", "transaction_id", "tx-1"))

		value, err := repo.GetMeta(ctx, "order-1", "transaction_id")
		require.NoError(t, err)
		assert.Equal(t, "tx-1", value)

		require.NoError(t, repo.SetMeta(ctx, "order-1", "transaction_id", "tx-2"))
		value, err = repo.GetMeta(ctx, "order-1", "transaction_id")
		require.NoError(t, err)
		assert.Equal(t, "tx-2", value)
	})

	t.Run("absent meta reads as empty", func(t *testing.T) {
		value, err := repo.GetMeta(ctx, "order-1", "charge_captured")
		require.NoError(t, err)
		assert.Equal(t, "", value)
	})

	t.Run("notes append", func(t *testing.T) {
		require.NoError(t, repo.AddNote(ctx, "order-1", "Payment approved for 25.50 (Transaction ID tx-2)"))

		var count int
		err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM order_notes WHERE order_id = 'order-1'`).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("mark failed is idempotent", func(t *testing.T) {
		alreadyFailed, err := repo.MarkFailed(ctx, "order-1")
		require.NoError(t, err)
		assert.False(t, alreadyFailed)

		alreadyFailed, err = repo.MarkFailed(ctx, "order-1")
		require.NoError(t, err)
		assert.True(t, alreadyFailed)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := repo.MarkFailed(ctx, "order-missing")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}
