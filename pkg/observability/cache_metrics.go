package observability

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCacheHits   = "treemerge.cache.hits"
	metricCacheMisses = "treemerge.cache.misses"

	attrCache = "cache"
)

// CacheStatsProvider exposes cumulative hit and miss counts.
type CacheStatsProvider interface {
	CacheHits() int64
	CacheMisses() int64
}

// RegisterCacheMetrics registers observable gauges reporting the counters of
// every named cache. Nil providers are ignored.
func RegisterCacheMetrics(mt metric.Meter, caches map[string]CacheStatsProvider) error {
	names := make([]string, 0, len(caches))

	for _, name := range slices.Sorted(maps.Keys(caches)) {
		if caches[name] != nil {
			names = append(names, name)
		}
	}

	if len(names) == 0 {
		return nil
	}

	observe := func(read func(CacheStatsProvider) int64) metric.Int64Callback {
		return func(_ context.Context, o metric.Int64Observer) error {
			for _, name := range names {
				o.Observe(read(caches[name]), metric.WithAttributes(attribute.String(attrCache, name)))
			}

			return nil
		}
	}

	_, err := mt.Int64ObservableGauge(metricCacheHits,
		metric.WithDescription("Cache hit count"),
		metric.WithUnit("{hit}"),
		metric.WithInt64Callback(observe(CacheStatsProvider.CacheHits)),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheHits, err)
	}

	_, err = mt.Int64ObservableGauge(metricCacheMisses,
		metric.WithDescription("Cache miss count"),
		metric.WithUnit("{miss}"),
		metric.WithInt64Callback(observe(CacheStatsProvider.CacheMisses)),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheMisses, err)
	}

	return nil
}
