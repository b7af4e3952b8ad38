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
	"net"
	"os"
	"os/signal"
	"time"

	syscall "golang.org/x/sys/unix"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/tsq/probe"
	"github.com/facebook/tsq/responder"
	"github.com/facebook/tsq/responder/checker"
	"github.com/facebook/tsq/responder/stats"
	"github.com/facebook/tsq/transport"
)

// sysStatsInterval is how often process/runtime stats are resampled into
// the monitoring endpoint, per SPEC_FULL.md §9.
const sysStatsInterval = 15 * time.Second

func main() {
	var (
		listen        string
		certFile      string
		keyFile       string
		iniConfig     string
		logLevel      string
		maxClients    int
		idleTimeout   time.Duration
		monitorPort   int
		managedIface  string
		manageIPs     bool
		notifySystemd bool
	)

	flag.StringVar(&listen, "listen", "", "address:port to listen on (required)")
	flag.StringVar(&certFile, "cert", "", "PEM-encoded TLS certificate (required)")
	flag.StringVar(&keyFile, "key", "", "PEM-encoded TLS key (required)")
	flag.StringVar(&iniConfig, "config", "", "optional INI file overriding the flags above")
	flag.StringVar(&logLevel, "loglevel", "info", "log level: debug, info, warning, error")
	flag.IntVar(&maxClients, "max-clients", responder.DefaultMaxClients, "maximum live connections before new ones are rejected")
	flag.DurationVar(&idleTimeout, "idle-timeout", responder.DefaultIdleTimeout, "idle timeout stored in the responder config; the QUIC listener always uses transport.MaxIdleTimeout (30s)")
	flag.IntVar(&monitorPort, "monitoring-port", 0, "port to serve JSON+Prometheus stats on, 0 to disable")
	flag.StringVar(&managedIface, "interface", "lo", "interface to bind --manage-ips addresses to")
	flag.BoolVar(&manageIPs, "manage-ips", false, "bind the listen IP onto --interface before accepting connections")
	flag.BoolVar(&notifySystemd, "notify-systemd", false, "send READY=1 to the systemd notify socket once listening")
	flag.Parse()

	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %s", logLevel)
	}

	cfg := responder.Config{
		Listen:         listen,
		CertFile:       certFile,
		KeyFile:        keyFile,
		MaxClients:     maxClients,
		IdleTimeout:    idleTimeout,
		MonitoringPort: monitorPort,
		ManageIPs:      manageIPs,
		NotifySystemd:  notifySystemd,
	}
	if iniConfig != "" {
		if err := responder.LoadINI(iniConfig, &cfg); err != nil {
			log.Fatalf("loading config: %v", err)
		}
	}
	if cfg.Listen == "" || cfg.CertFile == "" || cfg.KeyFile == "" {
		log.Fatal("--listen, --cert and --key are all required")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		log.Fatalf("loading certificate: %v", err)
	}
	tlsConfig := &tls.Config{Certificates: []tls.Certificate{cert}}

	listener, err := transport.ListenQUIC(cfg.Listen, tlsConfig)
	if err != nil {
		log.Fatalf("binding %s: %v", cfg.Listen, err)
	}

	if cfg.ManageIPs {
		host, _, err := net.SplitHostPort(cfg.Listen)
		if err == nil {
			if ip := net.ParseIP(host); ip != nil {
				if err := responder.BindVIPs(managedIface, []net.IP{ip}); err != nil {
					log.Errorf("binding VIP: %v", err)
				}
				defer responder.WithdrawVIPs(managedIface, []net.IP{ip})
			}
		}
	}

	mstats := stats.NewMultiStats()
	st := stats.Stats(mstats)
	ck := &checker.SimpleChecker{}

	srv := responder.NewServer(listener, cfg, st, ck)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	if cfg.MonitoringPort != 0 {
		go responder.StartMonitoring(cfg.MonitoringPort, mstats, ck)
		go sampleSysStats(ctx, mstats)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	if cfg.NotifySystemd {
		if err := responder.NotifySystemdReady(); err != nil {
			log.Warnf("sd_notify failed: %v", err)
		}
	}

	select {
	case <-sigCh:
		log.Info("shutting down")
		cancel()
		_ = listener.Close()
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server exited: %v", err)
		}
	}
}

// sampleSysStats periodically folds process/runtime stats into mstats
// until ctx is canceled, per SPEC_FULL.md §9.
func sampleSysStats(ctx context.Context, mstats *stats.MultiStats) {
	sys := &probe.SysStats{}
	ticker := time.NewTicker(sysStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mstats.SetSysStats(sys.Collect())
		}
	}
}
