package alertstore

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"inventory-ledger/internal/core"
)

func lowStock(product, location uuid.UUID) core.StockAlert {
	return core.StockAlert{
		ProductID:    product,
		LocationID:   location,
		Type:         core.AlertLowStock,
		Level:        core.LevelWarning,
		Qty:          decimal.NewFromInt(2),
		AvailableQty: decimal.NewFromInt(2),
	}
}

// exerciseBook runs the AlertBook contract against book.
func exerciseBook(t *testing.T, book core.AlertBook) {
	ctx := context.Background()
	product, location := uuid.New(), uuid.New()

	a, created, err := book.Raise(ctx, lowStock(product, location))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, core.AlertActive, a.Status)
	assert.False(t, a.CreatedAt.IsZero())

	dup, created, err := book.Raise(ctx, lowStock(product, location))
	require.NoError(t, err)
	assert.False(t, created, "an open alert is returned, not duplicated")
	assert.Equal(t, a.ID, dup.ID)

	other, created, err := book.Raise(ctx, lowStock(product, uuid.New()))
	require.NoError(t, err)
	assert.True(t, created)

	acked, err := book.Acknowledge(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, core.AlertAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedAt)

	st := core.AlertAcknowledged
	got, err := book.List(ctx, &st)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	resolved, err := book.Resolve(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, core.AlertResolved, resolved.Status)
	_, err = book.Acknowledge(ctx, a.ID)
	require.ErrorIs(t, err, core.ErrInvalidTransition)

	fresh, created, err := book.Raise(ctx, lowStock(product, location))
	require.NoError(t, err)
	assert.True(t, created, "resolution frees the dedup key")
	assert.NotEqual(t, a.ID, fresh.ID)

	all, err := book.List(ctx, nil)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(all))
	for _, x := range all {
		ids = append(ids, x.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{a.ID, other.ID, fresh.ID}, ids)

	_, err = book.Resolve(ctx, uuid.New())
	require.ErrorIs(t, err, core.ErrNotFound)
}

// exerciseConcurrentRaise checks that racing raisers agree on one open alert.
func exerciseConcurrentRaise(t *testing.T, book core.AlertBook) {
	ctx := context.Background()
	product, location := uuid.New(), uuid.New()

	var (
		mu      sync.Mutex
		created int
		ids     = map[uuid.UUID]bool{}
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, ok, err := book.Raise(ctx, lowStock(product, location))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[a.ID] = true
			if ok {
				created++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
}

func TestMemory(t *testing.T) {
	exerciseBook(t, NewMemory())
	exerciseConcurrentRaise(t, NewMemory())
}

func TestRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		ctr, err := testcontainers.Run(ctx, "redis:7-alpine",
			testcontainers.WithExposedPorts("6379/tcp"),
			testcontainers.WithWaitStrategy(wait.ForLog("Ready to accept connections")),
		)
		if err != nil {
			t.Skipf("redis container unavailable: %v", err)
		}
		t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })
		endpoint, err := ctr.Endpoint(ctx, "")
		require.NoError(t, err)
		url = "redis://" + endpoint
	}

	rdb, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	// A fresh prefix per run keeps reruns against a shared server independent.
	prefix := "test:" + uuid.NewString()[:8] + ":"
	exerciseBook(t, NewRedis(rdb, prefix, nil))
	exerciseConcurrentRaise(t, NewRedis(rdb, prefix+"race:", nil))
}

func TestNewRedisClient_RejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	require.Error(t, err)
}
