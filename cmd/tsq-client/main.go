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
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/tsq/aggregate"
	"github.com/facebook/tsq/probe"
	"github.com/facebook/tsq/transport"
)

var (
	okString   = color.GreenString("[ OK ]")
	failString = color.RedString("[FAIL]")
)

func main() {
	var (
		port      int
		count     int
		insecure  bool
		verbose   bool
		showTable bool
	)
	flag.IntVar(&port, "port", 443, "server port")
	flag.IntVar(&count, "count", 3, "number of probes per server (1-100)")
	flag.BoolVar(&insecure, "insecure", false, "disable peer certificate verification")
	flag.BoolVar(&verbose, "verbose", false, "log each probe's measurement")
	flag.BoolVar(&showTable, "table", false, "render a per-server summary table")
	flag.Parse()

	servers := flag.Args()
	if len(servers) == 0 {
		fmt.Fprintln(os.Stderr, "usage: tsq-client [flags] server [server...]")
		os.Exit(1)
	}
	if count < 1 || count > 100 {
		log.Fatalf("--count must be between 1 and 100, got %d", count)
	}
	if insecure {
		fmt.Fprintln(os.Stderr, "warning: --insecure disables TLS peer certificate verification")
	}
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: insecure} //nolint:gosec // explicit opt-in via --insecure

	type row struct {
		server string
		ok     bool
		offset time.Duration
		rtt    time.Duration
		err    error
	}
	rows := make([]row, 0, len(servers))

	for _, server := range servers {
		addr := net.JoinHostPort(server, fmt.Sprintf("%d", port))
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(count)*(probe.ProbeTimeout+probe.InterProbePause)+5*time.Second)
		conn, err := transport.DialQUIC(ctx, addr, tlsConfig)
		if err != nil {
			rows = append(rows, row{server: server, err: fmt.Errorf("dialing: %w", err)})
			cancel()
			continue
		}

		measurements := probe.RunQueries(ctx, conn, count, probe.InterProbePause)
		_ = conn.Close()
		cancel()

		if len(measurements) == 0 {
			rows = append(rows, row{server: server, err: fmt.Errorf("no successful probes out of %d", count)})
			continue
		}

		summary, err := aggregate.Aggregate(measurements)
		if err != nil {
			rows = append(rows, row{server: server, err: err})
			continue
		}

		if verbose {
			for i, m := range measurements {
				log.Debugf("%s probe %d: offset=%s rtt=%s", server, i+1, time.Duration(m.OffsetNS), time.Duration(m.RTTNS))
			}
		}

		rows = append(rows, row{
			server: server,
			ok:     true,
			offset: time.Duration(summary.MedianOffsetNS),
			rtt:    time.Duration(summary.MedianRTTNS),
		})
	}

	if showTable {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"server", "status", "offset", "rtt"})
		for _, r := range rows {
			status := okString
			offset, rtt := r.offset.String(), r.rtt.String()
			if !r.ok {
				status = failString
				offset, rtt = "-", "-"
			}
			table.Append([]string{r.server, status, offset, rtt})
		}
		table.Render()
	} else {
		for _, r := range rows {
			if r.ok {
				fmt.Printf("%s %s offset=%s rtt=%s\n", okString, r.server, r.offset, r.rtt)
			} else {
				fmt.Printf("%s %s %v\n", failString, r.server, r.err)
			}
		}
	}

	for _, r := range rows {
		if !r.ok {
			os.Exit(1)
		}
	}
}
