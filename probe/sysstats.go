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

package probe

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

var procStartTime = time.Now()

// SysStats samples process-level resource usage on each Collect call;
// tsq-server and tsq-adjtime call Collect periodically to fold it into their
// monitoring output (SPEC_FULL.md §9).
type SysStats struct {
	memstats *runtime.MemStats
}

// Collect gathers process CPU/RSS and Go runtime counters. Any individual
// gopsutil call that fails is skipped rather than aborting the whole
// collection, since these values are advisory.
func (s *SysStats) Collect() map[string]uint64 {
	stats := make(map[string]uint64)
	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)

	stats["process.alive_since"] = uint64(procStartTime.Unix())
	stats["process.uptime_s"] = uint64(time.Since(procStartTime).Seconds())

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if val, err := proc.Percent(0); err == nil {
			stats["process.cpu_permil"] = uint64(val * 1000)
		}
		if val, err := proc.MemoryInfo(); err == nil {
			stats["process.rss"] = val.RSS
			stats["process.vms"] = val.VMS
		}
		if val, err := proc.NumThreads(); err == nil {
			stats["process.num_threads"] = uint64(val)
		}
	}

	stats["runtime.goroutines"] = uint64(runtime.NumGoroutine())
	stats["runtime.mem.heap_alloc"] = m.HeapAlloc
	stats["runtime.mem.heap_inuse"] = m.HeapInuse
	stats["runtime.gc.count"] = uint64(m.NumGC)

	s.memstats = m
	return stats
}
