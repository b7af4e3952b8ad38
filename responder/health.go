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

package responder

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/tsq/responder/checker"
	"github.com/facebook/tsq/responder/stats"
)

// HealthHandler polls ck.Check() on every request and reports 200 "ok" or
// 503 with the failure reason, so an external prober (systemd, a load
// balancer) can act on it instead of it only ever failing silently inside
// the process.
func HealthHandler(ck *checker.SimpleChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := ck.Check(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// StartMonitoring serves stats.MultiStats's JSON/Prometheus routes plus
// "/health" (backed by ck.Check()) on port until the process exits.
func StartMonitoring(port int, st *stats.MultiStats, ck *checker.SimpleChecker) {
	mux := http.NewServeMux()
	mux.Handle("/", st.Handler())
	mux.Handle("/health", HealthHandler(ck))
	addr := fmt.Sprintf(":%d", port)
	log.Debugf("starting monitoring server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("monitoring http server exited: %v", err)
	}
}
