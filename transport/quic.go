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

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN is the protocol TSQ negotiates over TLS, per spec.md §6.
const ALPN = "tsq/1"

// MaxIdleTimeout is the QUIC idle timeout negotiated into every
// connection (MAX_IDLE_TIMEOUT_MS from spec.md §5).
const MaxIdleTimeout = 30 * time.Second

// datagramQueueLen is the minimum per-direction datagram queue depth
// required by spec.md §6.
const datagramQueueLen = 1000

func baseConfig() *quic.Config {
	return &quic.Config{
		EnableDatagrams: true,
		MaxIdleTimeout:  MaxIdleTimeout,
		// TSQ never uses streams; refusing peer-initiated ones keeps the
		// transport honest about that. quic-go treats 0 as "use the
		// default" and a negative value as "allow none".
		MaxIncomingStreams:    -1,
		MaxIncomingUniStreams: -1,
	}
}

func withALPN(tlsConfig *tls.Config) *tls.Config {
	cfg := tlsConfig.Clone()
	cfg.NextProtos = []string{ALPN}
	return cfg
}

type quicConn struct {
	conn *quic.Conn
}

// DialQUIC establishes a client connection to addr, negotiating ALPN and
// the datagram extension as required by spec.md §6.
func DialQUIC(ctx context.Context, addr string, tlsConfig *tls.Config) (Conn, error) {
	conn, err := quic.DialAddr(ctx, addr, withALPN(tlsConfig), baseConfig())
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &quicConn{conn: conn}, nil
}

func (c *quicConn) SendDatagram(data []byte) error {
	if len(data) > MaxDatagramSize {
		return fmt.Errorf("datagram of %d bytes exceeds %d byte cap", len(data), MaxDatagramSize)
	}
	return c.conn.SendDatagram(data)
}

func (c *quicConn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return c.conn.ReceiveDatagram(ctx)
}

func (c *quicConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *quicConn) Close() error {
	return c.conn.CloseWithError(0, "")
}

// quicDialer adapts DialQUIC to the Dialer interface.
type quicDialer struct{}

// NewDialer returns a Dialer backed by quic-go.
func NewDialer() Dialer { return quicDialer{} }

func (quicDialer) Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (Conn, error) {
	return DialQUIC(ctx, addr, tlsConfig)
}

type quicListener struct {
	ln *quic.Listener
}

// ListenQUIC starts a server endpoint on addr with the given TLS
// certificate configuration, negotiating ALPN and the datagram extension.
func ListenQUIC(addr string, tlsConfig *tls.Config) (Listener, error) {
	ln, err := quic.ListenAddr(addr, withALPN(tlsConfig), baseConfig())
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &quicListener{ln: ln}, nil
}

func (l *quicListener) Accept(ctx context.Context) (Conn, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return &quicConn{conn: conn}, nil
}

func (l *quicListener) Close() error {
	return l.ln.Close()
}

func (l *quicListener) Addr() net.Addr {
	return l.ln.Addr()
}
