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
	"context"
	"crypto/rand"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/tsq/protocol"
	"github.com/facebook/tsq/transport"
)

// ProbeTimeout is the default per-probe receive deadline (spec.md §5).
const ProbeTimeout = 3 * time.Second

// InterProbePause is the default pause between probes issued to the same
// server from the client CLI (spec.md §4.3).
const InterProbePause = time.Second

// Prober issues probes, one at a time, over a single established
// connection. Probes on one Prober are never pipelined: Probe must return
// before the next call starts, mirroring spec.md §4.3's "strictly
// sequential, never pipelined" ordering guarantee.
type Prober struct {
	Conn transport.Conn

	// now is overridable in tests so T1/T4 capture can be asserted exactly.
	now func() time.Time
}

// NewProber returns a Prober bound to an established connection.
func NewProber(conn transport.Conn) *Prober {
	return &Prober{Conn: conn, now: time.Now}
}

func (p *Prober) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// Probe runs a single request/response exchange and returns a Measurement,
// or a *ProbeError describing why none was obtained.
func (p *Prober) Probe(ctx context.Context) (Measurement, error) {
	var nonce [protocol.NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Measurement{}, newProbeError(KindTransportError, fmt.Errorf("generating nonce: %w", err))
	}

	req := protocol.EncodeRequestWithVersion(nonce, protocol.ProtocolVersion)
	if err := p.Conn.SendDatagram(req); err != nil {
		return Measurement{}, newProbeError(KindTransportError, fmt.Errorf("sending request: %w", err))
	}
	t1 := uint64(p.clock().UnixNano())

	deadline, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	data, err := p.Conn.ReceiveDatagram(deadline)
	if err != nil {
		return Measurement{}, newProbeError(KindNoResponse, fmt.Errorf("waiting for response: %w", err))
	}
	t4 := uint64(p.clock().UnixNano())

	parsed, err := protocol.DecodeResponse(data)
	if err != nil {
		return Measurement{}, newProbeError(KindDecodeError, fmt.Errorf("parsing response: %w", err))
	}
	if parsed.Nonce != nonce {
		return Measurement{}, newProbeError(KindNonceMismatch, fmt.Errorf("expected nonce %x, got %x", nonce, parsed.Nonce))
	}

	return measurementFromTimestamps(t1, parsed.RecvNS, parsed.SendNS, t4), nil
}

// RunQueries issues n probes sequentially against conn, pausing pause
// between each, and returns every successful Measurement. Failed probes are
// logged at warn level and otherwise skipped, per spec.md §7's "per-probe
// failures are local" policy.
func RunQueries(ctx context.Context, conn transport.Conn, n int, pause time.Duration) []Measurement {
	prober := NewProber(conn)
	measurements := make([]Measurement, 0, n)
	for i := 0; i < n; i++ {
		m, err := prober.Probe(ctx)
		if err != nil {
			log.Warnf("probe %d/%d against %s failed: %v", i+1, n, conn.RemoteAddr(), err)
		} else {
			measurements = append(measurements, m)
		}
		if i != n-1 {
			select {
			case <-ctx.Done():
				return measurements
			case <-time.After(pause):
			}
		}
	}
	return measurements
}
