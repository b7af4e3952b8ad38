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

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/tsq/aggregate"
	"github.com/facebook/tsq/probe"
	"github.com/facebook/tsq/responder/stats"
	"github.com/facebook/tsq/transport"
)

// interRoundPause is the pause between query rounds, per spec.md §4.3.
const interRoundPause = 500 * time.Millisecond

// sysStatsInterval is how often process/runtime stats are resampled into
// the monitoring endpoint, per SPEC_FULL.md §9.
const sysStatsInterval = 5 * time.Second

var (
	port          int
	queries       int
	maxOffsetMS   int
	slewThreshold int
	dryRun        bool
	verbose       bool
	configPath    string
	rttFilterMS   int
	monitorPort   int
)

var rootCmd = &cobra.Command{
	Use:   "tsq-adjtime server [server...]",
	Short: "Synchronize the system clock against one or more TSQ servers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().IntVar(&port, "port", 443, "server port")
	rootCmd.Flags().IntVar(&queries, "queries", 5, "probes per server")
	rootCmd.Flags().IntVar(&maxOffsetMS, "max-offset", 1000, "maximum allowed |offset| in milliseconds before refusing to adjust")
	rootCmd.Flags().IntVar(&slewThreshold, "slew-threshold", 500, "offsets at or below this many milliseconds are slewed, larger ones are stepped")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the intended adjustment without touching the clock")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVar(&configPath, "config", "", "optional YAML config overriding the flags above")
	rootCmd.Flags().IntVar(&rttFilterMS, "rtt-filter-ms", 0, "drop samples whose RTT exceeds this many milliseconds before aggregating; 0 disables")
	rootCmd.Flags().IntVar(&monitorPort, "monitoring-port", 0, "port to serve JSON+Prometheus stats on, 0 to disable")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	opts := Options{
		Port:          port,
		Queries:       queries,
		MaxOffset:     time.Duration(maxOffsetMS) * time.Millisecond,
		SlewThreshold: time.Duration(slewThreshold) * time.Millisecond,
		DryRun:        dryRun,
		RTTFilter:     time.Duration(rttFilterMS) * time.Millisecond,
	}
	if configPath != "" {
		fileOpts, err := ReadConfig(configPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		opts = fileOpts.merge(opts)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var mon *stats.MultiStats
	if monitorPort != 0 {
		mon = newMonitor()
		go mon.Start(monitorPort)
		go sampleSysStats(ctx, mon)
	}

	samples, err := collectSamples(ctx, args, opts, mon)
	if err != nil {
		return err
	}
	if opts.RTTFilter > 0 {
		samples = aggregate.FilterByRTT(samples, int64(opts.RTTFilter))
	}

	summary, err := aggregate.Aggregate(samples)
	if err != nil {
		return err
	}
	log.Infof("median offset %s, stdev %.1fus, rtt %s, n=%d", time.Duration(summary.MedianOffsetNS), summary.StdevOffsetNS/1000, time.Duration(summary.MedianRTTNS), summary.N)

	policy := aggregate.Policy{MaxAllowedOffset: opts.MaxOffset, SlewThreshold: opts.SlewThreshold, DryRun: opts.DryRun}
	return aggregate.Decide(policy, summary, aggregate.NewClockAdjuster())
}

// collectSamples probes every server concurrently but, per server,
// strictly sequentially — preserving spec.md §4.3's sequential-probe
// invariant per connection while parallelizing the servers dimension, via
// golang.org/x/sync/errgroup.
func collectSamples(ctx context.Context, servers []string, opts Options, mon *stats.MultiStats) ([]probe.Measurement, error) {
	var (
		mu      sync.Mutex
		samples []probe.Measurement
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, server := range servers {
		server := server
		g.Go(func() error {
			addr := net.JoinHostPort(server, fmt.Sprintf("%d", opts.Port))
			conn, err := transport.DialQUIC(gctx, addr, &tls.Config{})
			if err != nil {
				log.Warnf("dialing %s failed: %v", server, err)
				return nil
			}
			defer conn.Close()
			if mon != nil {
				mon.IncConnections()
				defer mon.DecConnections()
			}

			ms := probe.RunQueries(gctx, conn, opts.Queries, interRoundPause)
			if mon != nil {
				for i := 0; i < opts.Queries; i++ {
					mon.IncRequests()
				}
				for i := 0; i < len(ms); i++ {
					mon.IncResponses()
				}
			}
			mu.Lock()
			samples = append(samples, ms...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no successful probes against any server")
	}
	return samples, nil
}

// sampleSysStats periodically folds process/runtime stats into mon until
// ctx is canceled, per SPEC_FULL.md §9.
func sampleSysStats(ctx context.Context, mon *stats.MultiStats) {
	sys := &probe.SysStats{}
	mon.SetSysStats(sys.Collect())
	ticker := time.NewTicker(sysStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mon.SetSysStats(sys.Collect())
		}
	}
}
