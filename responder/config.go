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
	"time"

	"github.com/go-ini/ini"
)

// DefaultMaxClients is the default cap on live connections (spec.md §4.2).
const DefaultMaxClients = 1000

// DefaultIdleTimeout is the default MAX_IDLE_TIMEOUT_MS (spec.md §5/§6).
const DefaultIdleTimeout = 30 * time.Second

// Config is the responder's runtime configuration. Flags on the CLI
// populate it directly; an optional INI file (grounded in
// calnex/config/config.go's use of go-ini/ini) overrides flag defaults for
// operators who prefer file-based config.
type Config struct {
	Listen         string
	CertFile       string
	KeyFile        string
	MaxClients     int
	IdleTimeout    time.Duration
	MonitoringPort int
	ManageIPs      bool
	NotifySystemd  bool
}

// LoadINI overlays values present in the [responder] section of the INI
// file at path onto cfg, leaving fields the file doesn't mention untouched.
func LoadINI(path string, cfg *Config) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	section := f.Section("responder")

	if k, err := section.GetKey("listen"); err == nil {
		cfg.Listen = k.String()
	}
	if k, err := section.GetKey("cert"); err == nil {
		cfg.CertFile = k.String()
	}
	if k, err := section.GetKey("key"); err == nil {
		cfg.KeyFile = k.String()
	}
	if k, err := section.GetKey("max_clients"); err == nil {
		if v, err := k.Int(); err == nil {
			cfg.MaxClients = v
		}
	}
	if k, err := section.GetKey("idle_timeout_ms"); err == nil {
		if v, err := k.Int(); err == nil {
			cfg.IdleTimeout = time.Duration(v) * time.Millisecond
		}
	}
	if k, err := section.GetKey("monitoring_port"); err == nil {
		if v, err := k.Int(); err == nil {
			cfg.MonitoringPort = v
		}
	}
	if k, err := section.GetKey("manage_ips"); err == nil {
		if v, err := k.Bool(); err == nil {
			cfg.ManageIPs = v
		}
	}
	return nil
}
