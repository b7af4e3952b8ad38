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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// MultiStats fans every counter update out to both a JSONStats and a
// PromStats instance, and serves both on the same --monitoring-port: "/"
// for the JSON map, "/metrics" for Prometheus.
type MultiStats struct {
	JSON *JSONStats
	Prom *PromStats
}

// NewMultiStats builds a MultiStats with both backends initialized.
func NewMultiStats() *MultiStats {
	return &MultiStats{JSON: &JSONStats{}, Prom: NewPromStats()}
}

func (m *MultiStats) IncInvalidFormat() { m.JSON.IncInvalidFormat(); m.Prom.IncInvalidFormat() }
func (m *MultiStats) IncRequests()      { m.JSON.IncRequests(); m.Prom.IncRequests() }
func (m *MultiStats) IncResponses()     { m.JSON.IncResponses(); m.Prom.IncResponses() }
func (m *MultiStats) IncConnections()   { m.JSON.IncConnections(); m.Prom.IncConnections() }
func (m *MultiStats) DecConnections()   { m.JSON.DecConnections(); m.Prom.DecConnections() }
func (m *MultiStats) IncEvicted()       { m.JSON.IncEvicted(); m.Prom.IncEvicted() }
func (m *MultiStats) IncRejected()      { m.JSON.IncRejected(); m.Prom.IncRejected() }

// SetSysStats folds a process/runtime sample into both backends.
func (m *MultiStats) SetSysStats(sample map[string]uint64) {
	m.JSON.SetSysStats(sample)
	m.Prom.SetSysStats(sample)
}

// Handler returns an http.Handler serving the JSON map on "/" and
// Prometheus metrics on "/metrics", so callers that need to attach
// additional routes (e.g. a health check) can build their own mux around
// it instead of being confined to Start's fixed route set.
func (m *MultiStats) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", m.JSON.handleRequest)
	mux.Handle("/metrics", promhttp.HandlerFor(m.Prom.registry, promhttp.HandlerOpts{}))
	return mux
}

// Start serves the JSON map on "/" and Prometheus metrics on "/metrics"
// until the process exits.
func (m *MultiStats) Start(port int) {
	addr := fmt.Sprintf(":%d", port)
	log.Debugf("starting JSON+Prometheus stats server on %s", addr)
	if err := http.ListenAndServe(addr, m.Handler()); err != nil {
		log.Errorf("stats http server exited: %v", err)
	}
}
