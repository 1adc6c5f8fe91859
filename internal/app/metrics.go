// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package app

import (
	"context"
	"time"

	"github.com/bep/geotag/geocode"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "geotag"

type metrics struct {
	processed       *prometheus.CounterVec
	geocodeDuration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "images_processed_total",
			Help:      "The total number of image requests handled, by output format and outcome.",
		}, []string{"format", "outcome"}),
		geocodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "geocode_duration_seconds",
			Help:      "Time spent resolving addresses.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8),
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.processed, m.geocodeDuration)
	return m
}

// instrumentGeocoder records the latency of every Resolve call.
func (m *metrics) instrumentGeocoder(g geocode.Geocoder) geocode.Geocoder {
	return geocode.GeocoderFunc(func(ctx context.Context, address string) (geocode.Place, error) {
		start := time.Now()
		p, err := g.Resolve(ctx, address)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		m.geocodeDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		return p, err
	})
}
