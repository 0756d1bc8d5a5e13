package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ledger/internal/cache"
	"ledger/internal/core"
)

// ReportOptions configures report caching and the default salary.
type ReportOptions struct {
	CacheSize int
	CacheTTL  time.Duration
	// Salary is used by SalaryAnalysis when the caller passes none.
	Salary core.Money
}

// ReportService serves the monthly aggregations through a per-month cache.
// Concurrent misses for the same month share one store query.
type ReportService struct {
	store   ReportStore
	monthly cache.Cache[core.MonthlyBalance]
	splits  cache.Cache[core.FixedVariableSplit]
	group   singleflight.Group
	salary  core.Money

	// mu guards generation and orders cache writes against invalidation.
	// generation advances on every invalidation so results computed
	// before it are neither cached nor shared with later callers.
	mu         sync.Mutex
	generation uint64
}

func NewReportService(store ReportStore, opts ReportOptions) *ReportService {
	if opts.CacheSize < 1 {
		opts.CacheSize = 64
	}
	return &ReportService{
		store:   store,
		monthly: cache.NewLRUCache[core.MonthlyBalance](opts.CacheSize, opts.CacheTTL),
		splits:  cache.NewLRUCache[core.FixedVariableSplit](opts.CacheSize, opts.CacheTTL),
		salary:  opts.Salary,
	}
}

// RegisterCaches hands the report caches to a cleanup manager.
func (s *ReportService) RegisterCaches(m *cache.Manager) {
	m.Register("monthly_balance", s.monthly)
	m.Register("fixed_variable", s.splits)
}

func (s *ReportService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// storeIfCurrent caches v unless an invalidation ran after gen was read.
func storeIfCurrent[T any](s *ReportService, c cache.Cache[T], key string, gen uint64, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		c.Set(key, v)
	}
}

func monthlyKey(p core.Period) string { return "monthly:" + p.String() }
func splitKey(p core.Period) string   { return "split:" + p.String() }

func flightKey(key string, gen uint64) string {
	return key + "@" + strconv.FormatUint(gen, 10)
}

// MonthlyBalance returns the income/expense totals for p.
func (s *ReportService) MonthlyBalance(ctx context.Context, p core.Period) (core.MonthlyBalance, error) {
	if err := p.Validate(); err != nil {
		return core.MonthlyBalance{}, err
	}
	key := monthlyKey(p)
	if mb, ok := s.monthly.Get(key); ok {
		return cloneMonthly(mb), nil
	}

	gen := s.currentGeneration()
	v, err, shared := s.group.Do(flightKey(key, gen), func() (any, error) {
		mb, err := s.store.MonthlyBalance(ctx, p)
		if err != nil {
			return nil, err
		}
		storeIfCurrent(s, s.monthly, key, gen, mb)
		return mb, nil
	})
	if err != nil {
		return core.MonthlyBalance{}, err
	}
	slog.DebugContext(ctx, "Monthly balance computed", "period", p.String(), "shared", shared)
	return cloneMonthly(v.(core.MonthlyBalance)), nil
}

// FixedVsVariable returns p's expenses split by classification.
func (s *ReportService) FixedVsVariable(ctx context.Context, p core.Period) (core.FixedVariableSplit, error) {
	if err := p.Validate(); err != nil {
		return core.FixedVariableSplit{}, err
	}
	key := splitKey(p)
	if split, ok := s.splits.Get(key); ok {
		return cloneSplit(split), nil
	}

	gen := s.currentGeneration()
	v, err, shared := s.group.Do(flightKey(key, gen), func() (any, error) {
		split, err := s.store.FixedVsVariable(ctx, p)
		if err != nil {
			return nil, err
		}
		storeIfCurrent(s, s.splits, key, gen, split)
		return split, nil
	})
	if err != nil {
		return core.FixedVariableSplit{}, err
	}
	slog.DebugContext(ctx, "Fixed/variable split computed", "period", p.String(), "shared", shared)
	return cloneSplit(v.(core.FixedVariableSplit)), nil
}

// SalaryAnalysis compares p's spending with salary. A zero salary falls
// back to the configured one.
func (s *ReportService) SalaryAnalysis(ctx context.Context, p core.Period, salary core.Money) (core.SalaryAnalysis, error) {
	if salary.IsZero() {
		salary = s.salary
	}
	if salary.Cents <= 0 {
		return core.SalaryAnalysis{}, fmt.Errorf("%w: %w: no monthly salary given or configured", core.ErrValidation, core.ErrInvalidAmount)
	}

	mb, err := s.MonthlyBalance(ctx, p)
	if err != nil {
		return core.SalaryAnalysis{}, err
	}
	split, err := s.FixedVsVariable(ctx, p)
	if err != nil {
		return core.SalaryAnalysis{}, err
	}
	return core.AnalyzeSalary(split, mb.Expenses, salary)
}

// InvalidatePeriods drops cached reports for the given months.
func (s *ReportService) InvalidatePeriods(periods ...core.Period) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	for _, p := range periods {
		s.monthly.Delete(monthlyKey(p))
		s.splits.Delete(splitKey(p))
	}
}

// InvalidateAll drops every cached report.
func (s *ReportService) InvalidateAll() {
	s.mu.Lock()
	s.generation++
	n := s.monthly.Clear() + s.splits.Clear()
	s.mu.Unlock()
	if n > 0 {
		slog.Debug("Report cache cleared", "entries", n)
	}
}

// CacheStats reports usage of both report caches.
func (s *ReportService) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"monthly_balance": s.monthly.Stats(),
		"fixed_variable":  s.splits.Stats(),
	}
}

// Cached values are shared; callers get their own slices.
func cloneMonthly(mb core.MonthlyBalance) core.MonthlyBalance {
	mb.ByCategory = slices.Clone(mb.ByCategory)
	return mb
}

func cloneSplit(s core.FixedVariableSplit) core.FixedVariableSplit {
	s.Fixed.Expenses = slices.Clone(s.Fixed.Expenses)
	s.Variable.Expenses = slices.Clone(s.Variable.Expenses)
	return s
}
