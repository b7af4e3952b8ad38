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

/*
Package stats implements statistics collection and reporting for the TSQ
responder: counters for requests, responses, connection churn, and eviction,
exported both as JSON over HTTP and as Prometheus metrics.
*/
package stats

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Stats is the counter surface the responder updates as it serves
// connections and requests.
type Stats interface {
	IncRequests()
	IncResponses()
	IncInvalidFormat()
	IncConnections()
	DecConnections()
	IncEvicted()
	IncRejected()
}

// JSONStats is a passive Stats implementation: counters are updated
// in-line by the responder and served as a JSON map on demand.
type JSONStats struct {
	// keep these aligned to 64-bit for sync/atomic
	invalidFormat int64
	requests      int64
	responses     int64
	connections   int64
	evicted       int64
	rejected      int64

	sysMu  sync.Mutex
	sysMap map[string]uint64
}

func (j *JSONStats) toMap() map[string]interface{} {
	out := map[string]interface{}{
		"invalidformat": atomic.LoadInt64(&j.invalidFormat),
		"requests":      atomic.LoadInt64(&j.requests),
		"responses":     atomic.LoadInt64(&j.responses),
		"connections":   atomic.LoadInt64(&j.connections),
		"evicted":       atomic.LoadInt64(&j.evicted),
		"rejected":      atomic.LoadInt64(&j.rejected),
	}
	j.sysMu.Lock()
	for k, v := range j.sysMap {
		out[k] = v
	}
	j.sysMu.Unlock()
	return out
}

// SetSysStats replaces the process/runtime sample folded into the JSON
// output, per SPEC_FULL.md §9's periodic gopsutil sampling.
func (j *JSONStats) SetSysStats(sample map[string]uint64) {
	j.sysMu.Lock()
	j.sysMap = sample
	j.sysMu.Unlock()
}

func (j *JSONStats) handleRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(j.toMap())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(js); err != nil {
		log.Errorf("failed to reply: %v", err)
	}
}

// Start serves the JSON stats map on "/" until the process exits.
func (j *JSONStats) Start(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", j.handleRequest)
	addr := fmt.Sprintf(":%d", port)
	log.Debugf("starting stats http server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("stats http server exited: %v", err)
	}
}

// IncInvalidFormat atomically adds 1 to the counter.
func (j *JSONStats) IncInvalidFormat() { atomic.AddInt64(&j.invalidFormat, 1) }

// IncRequests atomically adds 1 to the counter.
func (j *JSONStats) IncRequests() { atomic.AddInt64(&j.requests, 1) }

// IncResponses atomically adds 1 to the counter.
func (j *JSONStats) IncResponses() { atomic.AddInt64(&j.responses, 1) }

// IncConnections atomically adds 1 to the counter.
func (j *JSONStats) IncConnections() { atomic.AddInt64(&j.connections, 1) }

// DecConnections atomically removes 1 from the counter.
func (j *JSONStats) DecConnections() { atomic.AddInt64(&j.connections, -1) }

// IncEvicted atomically adds 1 to the counter.
func (j *JSONStats) IncEvicted() { atomic.AddInt64(&j.evicted, 1) }

// IncRejected atomically adds 1 to the counter.
func (j *JSONStats) IncRejected() { atomic.AddInt64(&j.rejected, 1) }
