package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/cache"
	"ledger/internal/core"
)

// countingReports is a ReportStore that returns canned results and counts calls.
type countingReports struct {
	monthlyCalls atomic.Int32
	splitCalls   atomic.Int32
	monthly      core.MonthlyBalance
	split        core.FixedVariableSplit
	err          error
}

func (c *countingReports) MonthlyBalance(_ context.Context, p core.Period) (core.MonthlyBalance, error) {
	c.monthlyCalls.Add(1)
	mb := c.monthly
	mb.Period = p
	mb.ByCategory = append([]core.CategoryTotal{}, c.monthly.ByCategory...)
	return mb, c.err
}

func (c *countingReports) FixedVsVariable(_ context.Context, p core.Period) (core.FixedVariableSplit, error) {
	c.splitCalls.Add(1)
	s := c.split
	s.Period = p
	return s, c.err
}

func marchReports() *countingReports {
	return &countingReports{
		monthly: core.MonthlyBalance{
			Income:   core.NewMoney(300000),
			Expenses: core.NewMoney(210000),
			Balance:  core.NewMoney(90000),
			ByCategory: []core.CategoryTotal{
				{Category: "rent", Kind: core.Expense, Total: core.NewMoney(150000), Classification: core.Fixed},
			},
		},
		split: core.FixedVariableSplit{
			Fixed:    core.ExpenseGroup{Expenses: []core.CategoryAmount{{Category: "rent", Total: core.NewMoney(150000)}}, Total: core.NewMoney(150000)},
			Variable: core.ExpenseGroup{Expenses: []core.CategoryAmount{{Category: "food", Total: core.NewMoney(60000)}}, Total: core.NewMoney(60000)},
		},
	}
}

var march = core.Period{Year: 2025, Month: 3}

func TestReportService_CachesPerMonth(t *testing.T) {
	ctx := context.Background()
	store := marchReports()
	svc := NewReportService(store, ReportOptions{CacheSize: 8, CacheTTL: time.Minute})

	first, err := svc.MonthlyBalance(ctx, march)
	require.NoError(t, err)
	second, err := svc.MonthlyBalance(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), store.monthlyCalls.Load())

	_, err = svc.MonthlyBalance(ctx, core.Period{Year: 2025, Month: 4})
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.monthlyCalls.Load())

	stats := svc.CacheStats()["monthly_balance"]
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestReportService_ReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	svc := NewReportService(marchReports(), ReportOptions{CacheTTL: time.Minute})

	mb, err := svc.MonthlyBalance(ctx, march)
	require.NoError(t, err)
	mb.ByCategory[0].Category = "mutated"

	again, err := svc.MonthlyBalance(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, "rent", again.ByCategory[0].Category)
}

func TestReportService_Invalidation(t *testing.T) {
	ctx := context.Background()
	store := marchReports()
	svc := NewReportService(store, ReportOptions{CacheTTL: time.Minute})

	_, err := svc.FixedVsVariable(ctx, march)
	require.NoError(t, err)
	_, err = svc.FixedVsVariable(ctx, core.Period{Year: 2025, Month: 4})
	require.NoError(t, err)
	require.Equal(t, int32(2), store.splitCalls.Load())

	svc.InvalidatePeriods(march)
	_, err = svc.FixedVsVariable(ctx, march)
	require.NoError(t, err)
	_, err = svc.FixedVsVariable(ctx, core.Period{Year: 2025, Month: 4})
	require.NoError(t, err)
	assert.Equal(t, int32(3), store.splitCalls.Load(), "only March was recomputed")

	svc.InvalidateAll()
	_, err = svc.FixedVsVariable(ctx, core.Period{Year: 2025, Month: 4})
	require.NoError(t, err)
	assert.Equal(t, int32(4), store.splitCalls.Load())
}

func TestReportService_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	store := marchReports()
	store.err = errors.New("disk on fire")
	svc := NewReportService(store, ReportOptions{CacheTTL: time.Minute})

	_, err := svc.MonthlyBalance(ctx, march)
	require.Error(t, err)

	store.err = nil
	_, err = svc.MonthlyBalance(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.monthlyCalls.Load())
}

func TestReportService_InvalidPeriod(t *testing.T) {
	store := marchReports()
	svc := NewReportService(store, ReportOptions{})

	_, err := svc.MonthlyBalance(context.Background(), core.Period{Year: 2025, Month: 0})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Zero(t, store.monthlyCalls.Load())
}

func TestReportService_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	store := marchReports()
	svc := NewReportService(store, ReportOptions{CacheTTL: time.Minute})

	var wg sync.WaitGroup
	results := make([]core.MonthlyBalance, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mb, err := svc.MonthlyBalance(ctx, march)
			assert.NoError(t, err)
			results[i] = mb
		}(i)
	}
	wg.Wait()

	for _, mb := range results {
		assert.Equal(t, int64(90000), mb.Balance.Cents)
	}
	assert.LessOrEqual(t, store.monthlyCalls.Load(), int32(len(results)))
	assert.GreaterOrEqual(t, store.monthlyCalls.Load(), int32(1))
}

func TestReportService_SalaryAnalysis(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit salary", func(t *testing.T) {
		svc := NewReportService(marchReports(), ReportOptions{})
		a, err := svc.SalaryAnalysis(ctx, march, core.NewMoney(250000))
		require.NoError(t, err)

		assert.Equal(t, "60", a.FixedPercentage.String())
		assert.Equal(t, "84", a.TotalPercentage.String())
		assert.Equal(t, int64(40000), a.Remaining.Cents)
		assert.Equal(t, []string{core.AdviceHighFixed}, a.Advice)
	})

	t.Run("configured salary", func(t *testing.T) {
		svc := NewReportService(marchReports(), ReportOptions{Salary: core.NewMoney(1000000)})
		a, err := svc.SalaryAnalysis(ctx, march, core.Money{})
		require.NoError(t, err)
		assert.Equal(t, int64(1000000), a.Salary.Cents)
		assert.Equal(t, []string{core.AdviceHealthySavings}, a.Advice)
	})

	t.Run("no salary anywhere", func(t *testing.T) {
		svc := NewReportService(marchReports(), ReportOptions{})
		_, err := svc.SalaryAnalysis(ctx, march, core.Money{})
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestReportService_RegisterCaches(t *testing.T) {
	svc := NewReportService(marchReports(), ReportOptions{CacheTTL: time.Nanosecond})
	_, err := svc.MonthlyBalance(context.Background(), march)
	require.NoError(t, err)

	m := cache.NewManager()
	svc.RegisterCaches(m)
	time.Sleep(time.Millisecond)
	assert.Equal(t, 1, m.Sweep())
}

// invalidatingCache starts an invalidation from inside Set and gives it a
// moment to finish before storing, so a check-then-set race would cache a
// stale value.
type invalidatingCache struct {
	cache.Cache[core.MonthlyBalance]
	invalidate func()
	done       chan struct{}
}

func (c *invalidatingCache) Set(key string, v core.MonthlyBalance) {
	go func() {
		c.invalidate()
		close(c.done)
	}()
	select {
	case <-c.done:
	case <-time.After(50 * time.Millisecond):
	}
	c.Cache.Set(key, v)
}

func TestReportService_InvalidationDuringStoreIsNotLost(t *testing.T) {
	ctx := context.Background()
	store := marchReports()
	svc := NewReportService(store, ReportOptions{})

	racing := &invalidatingCache{
		Cache:      svc.monthly,
		invalidate: func() { svc.InvalidatePeriods(march) },
		done:       make(chan struct{}),
	}
	svc.monthly = racing

	_, err := svc.MonthlyBalance(ctx, march)
	require.NoError(t, err)
	<-racing.done

	_, ok := racing.Cache.Get(monthlyKey(march))
	assert.False(t, ok, "result computed before the invalidation must not stay cached")

	svc.monthly = racing.Cache
	_, err = svc.MonthlyBalance(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.monthlyCalls.Load())
}
