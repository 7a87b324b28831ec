package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartattd/smartattd/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS CACHE
// Caches class statistics per filter. Keys put subject and period first so an
// attendance write can drop every affected entry with a handful of patterns.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultAnalyticsTTL is used when no TTL is configured.
const DefaultAnalyticsTTL = 10 * time.Minute

// AnalyticsCache implements attendance.StatsCache.
type AnalyticsCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewAnalyticsCache creates a new AnalyticsCache.
func NewAnalyticsCache(cache *Cache, ttl time.Duration) *AnalyticsCache {
	if ttl <= 0 {
		ttl = DefaultAnalyticsTTL
	}
	return &AnalyticsCache{cache: cache, ttl: ttl}
}

// AnalyticsKey returns
// "analytics:{subject}:{month}:{year}:{branch}:{batch}".
func AnalyticsKey(f attendance.Filter) string {
	return PrefixAnalytics +
		keySegment(f.Subject) + ":" +
		keySegment(f.Month) + ":" +
		yearSegment(f.Year) + ":" +
		keySegment(f.Branch) + ":" +
		keySegment(f.Batch)
}

// InvalidationPatterns returns the globs matching every cached filter whose
// result can include a record of the subject in the period: the filter's
// subject, month and year are each either the exact value or unset.
func InvalidationPatterns(subject string, period attendance.Period) []string {
	subjects := []string{keySegment(subject), anySegment}
	months := []string{keySegment(period.Month), anySegment}
	years := []string{yearSegment(period.Year), anySegment}

	patterns := make([]string, 0, len(subjects)*len(months)*len(years))
	for _, s := range subjects {
		for _, m := range months {
			for _, y := range years {
				patterns = append(patterns, PrefixAnalytics+s+":"+m+":"+y+":*")
			}
		}
	}
	return patterns
}

// GetStats returns cached stats for the filter.
func (c *AnalyticsCache) GetStats(ctx context.Context, filter attendance.Filter) (*attendance.ClassStats, error) {
	var stats attendance.ClassStats
	if err := c.cache.Get(ctx, AnalyticsKey(filter), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SetStats stores stats for the filter.
func (c *AnalyticsCache) SetStats(ctx context.Context, filter attendance.Filter, stats attendance.ClassStats) error {
	return c.cache.Set(ctx, AnalyticsKey(filter), stats, c.ttl)
}

// InvalidateSubject drops every cached entry that may contain the subject's
// records for the period. All patterns are attempted; errors are joined.
func (c *AnalyticsCache) InvalidateSubject(ctx context.Context, subject string, period attendance.Period) error {
	var errs []error
	for _, p := range InvalidationPatterns(subject, period) {
		if err := c.cache.DeleteByPattern(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("pattern %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
