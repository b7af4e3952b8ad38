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

package main

import "github.com/facebook/tsq/responder/stats"

// newMonitor returns a JSON+Prometheus stats endpoint for the adjtime
// CLI's --monitoring-port; the CLI increments the same request/response
// counters the responder does as its own probes run, so dashboards can
// use one schema for both sides.
func newMonitor() *stats.MultiStats {
	return stats.NewMultiStats()
}
