/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stats

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PromStats is a Stats implementation backed directly by prometheus
// counters/gauges, registered against a private registry so multiple
// instances (e.g. in tests) don't collide on the default one.
type PromStats struct {
	registry      *prometheus.Registry
	requests      prometheus.Counter
	responses     prometheus.Counter
	invalidFormat prometheus.Counter
	evicted       prometheus.Counter
	rejected      prometheus.Counter
	connections   prometheus.Gauge
	sys           *prometheus.GaugeVec
}

// NewPromStats builds a PromStats with all metrics registered.
func NewPromStats() *PromStats {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &PromStats{
		registry:      reg,
		requests:      factory.NewCounter(prometheus.CounterOpts{Name: "tsq_responder_requests_total"}),
		responses:     factory.NewCounter(prometheus.CounterOpts{Name: "tsq_responder_responses_total"}),
		invalidFormat: factory.NewCounter(prometheus.CounterOpts{Name: "tsq_responder_invalid_format_total"}),
		evicted:       factory.NewCounter(prometheus.CounterOpts{Name: "tsq_responder_evicted_total"}),
		rejected:      factory.NewCounter(prometheus.CounterOpts{Name: "tsq_responder_rejected_total"}),
		connections:   factory.NewGauge(prometheus.GaugeOpts{Name: "tsq_responder_connections"}),
		sys:           factory.NewGaugeVec(prometheus.GaugeOpts{Name: "tsq_sys_stat"}, []string{"metric"}),
	}
}

// SetSysStats publishes a process/runtime sample, keyed by metric name, per
// SPEC_FULL.md §9's periodic gopsutil sampling.
func (p *PromStats) SetSysStats(sample map[string]uint64) {
	for k, v := range sample {
		p.sys.WithLabelValues(k).Set(float64(v))
	}
}

// Start serves /metrics until the process exits.
func (p *PromStats) Start(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	log.Debugf("starting prometheus exporter on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("prometheus http server exited: %v", err)
	}
}

func (p *PromStats) IncInvalidFormat() { p.invalidFormat.Inc() }
func (p *PromStats) IncRequests()      { p.requests.Inc() }
func (p *PromStats) IncResponses()     { p.responses.Inc() }
func (p *PromStats) IncConnections()   { p.connections.Inc() }
func (p *PromStats) DecConnections()   { p.connections.Dec() }
func (p *PromStats) IncEvicted()       { p.evicted.Inc() }
func (p *PromStats) IncRejected()      { p.rejected.Inc() }
