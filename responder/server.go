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
Package responder implements the TSQ server side: it accepts QUIC
connections, and on each one serves requests strictly sequentially,
capturing T2 at handler entry and T3 immediately before the transport
hand-off.
*/
package responder

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/tsq/protocol"
	"github.com/facebook/tsq/responder/checker"
	"github.com/facebook/tsq/responder/stats"
	"github.com/facebook/tsq/transport"
)

// connState tracks per-connection bookkeeping used for the summary log line
// emitted on close (spec.md §4.2 "State").
type connState struct {
	conn      transport.Conn
	queries   int64
	firstSeen time.Time
	done      chan struct{}
}

// Server is the TSQ responder: one accept loop owning a map of live
// connections. Each connection is served by exactly one goroutine for its
// whole lifetime, with requests on that connection handled strictly
// sequentially — satisfying spec.md §5's "no pipelining per connection, no
// cross-connection lock contention" via a per-connection goroutine instead
// of a literal single OS thread (see DESIGN.md's Open Question 3).
type Server struct {
	Listener transport.Listener
	Config   Config
	Stats    stats.Stats
	Checker  *checker.SimpleChecker

	mu          sync.Mutex
	connections map[string]*connState
}

// NewServer builds a Server ready to Start.
func NewServer(listener transport.Listener, cfg Config, st stats.Stats, ck *checker.SimpleChecker) *Server {
	return &Server{
		Listener:    listener,
		Config:      cfg,
		Stats:       st,
		Checker:     ck,
		connections: make(map[string]*connState),
	}
}

// Start runs the accept loop until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	log.Infof("responder listening on %s", s.Listener.Addr())
	s.Checker.MarkListening()
	defer s.Checker.MarkStopped()

	for {
		conn, err := s.Listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.sweepClosed()
		if s.liveCount() >= s.maxClients() {
			log.Warnf("rejecting connection from %s: at MAX_CLIENTS (%d)", conn.RemoteAddr(), s.maxClients())
			s.Stats.IncRejected()
			_ = conn.Close()
			continue
		}

		state := &connState{conn: conn, firstSeen: time.Now(), done: make(chan struct{})}
		key := conn.RemoteAddr().String()
		s.mu.Lock()
		s.connections[key] = state
		s.mu.Unlock()
		s.Stats.IncConnections()

		go s.handleConnection(ctx, key, state)
	}
}

func (s *Server) maxClients() int {
	if s.Config.MaxClients > 0 {
		return s.Config.MaxClients
	}
	return DefaultMaxClients
}

// liveCount reports the number of connections not yet swept.
func (s *Server) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// sweepClosed drops bookkeeping for connections whose goroutine has exited,
// per spec.md §4.2's "closed/timed-out connections are swept eagerly".
func (s *Server) sweepClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, st := range s.connections {
		select {
		case <-st.done:
			delete(s.connections, key)
		default:
		}
	}
}

// handleConnection serves requests on conn one at a time until it's closed
// or ctx is canceled, then removes it from the live set and logs a summary.
func (s *Server) handleConnection(ctx context.Context, key string, state *connState) {
	defer close(state.done)
	defer func() {
		s.mu.Lock()
		delete(s.connections, key)
		s.mu.Unlock()
		s.Stats.DecConnections()
		log.Infof("connection closed: peer=%s queries=%d duration=%s", key, state.queries, time.Since(state.firstSeen))
	}()
	defer state.conn.Close()

	for {
		data, err := state.conn.ReceiveDatagram(ctx)
		// T2 is read as soon as ReceiveDatagram returns, i.e. after QUIC
		// has decrypted and dispatched the datagram, not at wire arrival;
		// that server-side latency biases the reported offset.
		t2 := uint64(time.Now().UnixNano())
		if err != nil {
			if ctx.Err() == nil {
				log.Debugf("connection %s ended: %v", key, err)
			}
			return
		}

		// state.queries is only ever touched by this connection's own
		// goroutine, so no lock/atomic is needed here.
		state.queries++
		s.Stats.IncRequests()
		s.serveRequest(key, state.conn, data, t2)
	}
}

// serveRequest implements the handler algorithm from spec.md §4.2: validate,
// echo the nonce, attach T2 and T3. T3 is captured as the very last step
// before the transport send, per the "no significant work between T3
// capture and hand-off" requirement — the buffer is pre-built and only the
// send-timestamp TLV is patched in place.
func (s *Server) serveRequest(peer string, conn transport.Conn, data []byte, t2 uint64) {
	if !protocol.ValidRequest(data) {
		log.Warnf("dropping malformed request from %s (%d bytes)", peer, len(data))
		s.Stats.IncInvalidFormat()
		return
	}

	if peerVersion, ok := protocol.RequestVersion(data); ok {
		if err := CheckProtocolVersion(peerVersion); err != nil {
			log.Warnf("version check for %s: %v", peer, err)
		}
	}

	nonce := protocol.RequestNonce(data)
	resp := protocol.EncodeResponse(nonce, t2, t2)

	t3 := uint64(time.Now().UnixNano())
	protocol.PatchSendTimestamp(resp, t3)

	if err := conn.SendDatagram(resp); err != nil {
		log.Warnf("failed to send response to %s: %v", peer, err)
		return
	}
	s.Stats.IncResponses()
}
