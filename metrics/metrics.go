// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exports a watcher's receive and dispatch counters in
// Prometheus text format.
//
// A [Watcher] implements [remote.Observer]; pass it as the watcher's
// Observer and serve [Watcher.Handler] with [Listen].
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/sera/remote"
)

const namespace = "sera"

// Watcher holds the collectors for one watcher process on a private
// registry.
type Watcher struct {
	registry *prometheus.Registry

	received   prometheus.Counter
	duplicates prometheus.Counter
	dropped    *prometheus.CounterVec
	handled    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var _ remote.Observer = (*Watcher)(nil)

// NewWatcher returns collectors labelled with the watcher's endpoint
// name. The registry also carries the Go runtime and process
// collectors.
func NewWatcher(endpoint string) *Watcher {
	labels := prometheus.Labels{"endpoint": endpoint}
	w := &Watcher{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "messages_received_total",
			Help:        "Messages received, after duplicate filtering.",
			ConstLabels: labels,
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "messages_duplicate_total",
			Help:        "Redelivered messages dropped by the duplicate filter.",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "messages_dropped_total",
			Help:        "Messages discarded without a response.",
			ConstLabels: labels,
		}, []string{"reason"}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "commands_handled_total",
			Help:        "Command steps run, by command and return code.",
			ConstLabels: labels,
		}, []string{"command", "return_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "command_duration_seconds",
			Help:        "Time spent running each command step.",
			ConstLabels: labels,
			Buckets:     []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"command"}),
	}
	w.registry.MustRegister(
		w.received,
		w.duplicates,
		w.dropped,
		w.handled,
		w.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return w
}

func (w *Watcher) Received()  { w.received.Inc() }
func (w *Watcher) Duplicate() { w.duplicates.Inc() }

func (w *Watcher) Dropped(reason string) {
	w.dropped.WithLabelValues(reason).Inc()
}

func (w *Watcher) Handled(command string, returnCode int, elapsed time.Duration) {
	w.handled.WithLabelValues(command, strconv.Itoa(returnCode)).Inc()
	w.duration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// Registry returns the registry the collectors are registered on.
func (w *Watcher) Registry() *prometheus.Registry { return w.registry }

// Handler routes GET /metrics to the registry and GET /healthz to a
// plain liveness probe.
func (w *Watcher) Handler() http.Handler {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(w.registry, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		rw.Write([]byte("ok\n"))
	})
	return router
}
