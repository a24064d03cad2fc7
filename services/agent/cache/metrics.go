// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type evictReason string

const (
	evictExpired  evictReason = "expired"
	evictCapacity evictReason = "capacity"
)

var meter = otel.Meter("scholar.cache")

var (
	cacheEvictions metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics lazily creates the instruments on the global meter provider.
func initMetrics() error {
	metricsOnce.Do(func() {
		cacheEvictions, metricsErr = meter.Int64Counter(
			"scholar_cache_evictions_total",
			metric.WithDescription("Total result cache evictions by reason"),
		)
	})
	return metricsErr
}

func recordEviction(ctx context.Context, name string, reason evictReason) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheEvictions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", name),
		attribute.String("reason", string(reason)),
	))
}
