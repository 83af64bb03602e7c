package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricPoolHits   = "lazygrain.pool.hits"
	metricPoolMisses = "lazygrain.pool.misses"
)

// PoolStatsProvider exposes reuse hit/miss counters for OTel export.
// Neither the prefetch future window nor the shmem arena implements it.
type PoolStatsProvider interface {
	CacheHits() int64
	CacheMisses() int64
}

// RegisterPoolMetrics registers observable gauges that report reuse hit/miss
// counters from the prefetch window and the shmem arena allocator. Either
// provider may be nil.
func RegisterPoolMetrics(mt metric.Meter, window, arena PoolStatsProvider) error {
	providers := make([]struct {
		name     string
		provider PoolStatsProvider
	}, 0, 2) // Two pool types: prefetch window and shmem arena.

	if window != nil {
		providers = append(providers, struct {
			name     string
			provider PoolStatsProvider
		}{"window", window})
	}

	if arena != nil {
		providers = append(providers, struct {
			name     string
			provider PoolStatsProvider
		}{"arena", arena})
	}

	if len(providers) == 0 {
		return nil
	}

	_, err := mt.Int64ObservableGauge(metricPoolHits,
		metric.WithDescription("Pool reuse hit count"),
		metric.WithUnit("{hit}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			for _, p := range providers {
				o.Observe(p.provider.CacheHits(), metric.WithAttributes(
					attribute.String("pool", p.name),
				))
			}

			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricPoolHits, err)
	}

	_, err = mt.Int64ObservableGauge(metricPoolMisses,
		metric.WithDescription("Pool reuse miss count"),
		metric.WithUnit("{miss}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			for _, p := range providers {
				o.Observe(p.provider.CacheMisses(), metric.WithAttributes(
					attribute.String("pool", p.name),
				))
			}

			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricPoolMisses, err)
	}

	return nil
}
