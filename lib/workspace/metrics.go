// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

// metrics are the service's Prometheus collectors.
type metrics struct {
	saveCalls        prometheus.Counter
	versionsSaved    prometheus.Counter
	referencesStored prometheus.Counter
	bytesSaved       prometheus.Counter
	spills           prometheus.Counter
	rejections       *prometheus.CounterVec
	saveDuration     prometheus.Histogram
	objectsRead      prometheus.Counter
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		saveCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsstore",
			Subsystem: "objects",
			Name:      "save_calls_total",
			Help:      "Save calls that committed",
		}),
		versionsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsstore",
			Subsystem: "objects",
			Name:      "versions_saved_total",
			Help:      "Versions written by saves, copies, and reverts",
		}),
		referencesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsstore",
			Subsystem: "objects",
			Name:      "references_stored_total",
			Help:      "Resolved references recorded on saved versions",
		}),
		bytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsstore",
			Subsystem: "objects",
			Name:      "document_bytes_saved_total",
			Help:      "Canonical document bytes written by saves",
		}),
		spills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsstore",
			Subsystem: "objects",
			Name:      "buffer_spills_total",
			Help:      "Saved documents whose canonical form spilled to disk",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsstore",
			Subsystem: "objects",
			Name:      "save_rejections_total",
			Help:      "Save calls rejected, by error kind",
		}, []string{"kind"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wsstore",
			Subsystem: "objects",
			Name:      "save_duration_seconds",
			Help:      "Duration of save calls",
			Buckets:   prometheus.DefBuckets,
		}),
		objectsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsstore",
			Subsystem: "objects",
			Name:      "objects_read_total",
			Help:      "Object versions returned with data",
		}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, collector := range []prometheus.Collector{
		m.saveCalls, m.versionsSaved, m.referencesStored, m.bytesSaved,
		m.spills, m.rejections, m.saveDuration, m.objectsRead,
	} {
		if err := registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, fmt.Errorf("registering workspace metrics: %w", err)
		}
	}
	return m, nil
}

// rejected counts a failed save by its fault kind.
func (m *metrics) rejected(err error) {
	m.rejections.WithLabelValues(fault.KindOf(err).String()).Inc()
}
