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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/facebook/tsq/protocol"
	"github.com/facebook/tsq/transport"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "quic" }
func (a fakeAddr) String() string  { return string(a) }

func TestProbeOffsetFormula(t *testing.T) {
	// Scenario 2 from spec.md §8: T1=1000, T2=2000, T3=2100, T4=1200.
	ctrl := gomock.NewController(t)
	conn := transport.NewMockConn(ctrl)

	var nonce [protocol.NonceSize]byte
	var capturedReq []byte
	conn.EXPECT().SendDatagram(gomock.Any()).DoAndReturn(func(data []byte) error {
		capturedReq = append([]byte{}, data...)
		copy(nonce[:], data[2:2+protocol.NonceSize])
		return nil
	})
	conn.EXPECT().ReceiveDatagram(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]byte, error) {
		return protocol.EncodeResponse(nonce, 2000, 2100), nil
	})

	p := NewProber(conn)
	calls := 0
	base := []uint64{1000, 1200}
	p.now = func() time.Time {
		ns := base[calls]
		calls++
		return time.Unix(0, int64(ns))
	}

	m, err := p.Probe(context.Background())
	require.NoError(t, err)
	require.True(t, protocol.ValidRequest(capturedReq))
	// T2 and T3 travel through the truncating NTP codec and arrive as 1999
	// and 2099, so the offset is ((999)+(899))/2 = 949 rather than the 950
	// the exact timestamps would give.
	require.EqualValues(t, 949, m.OffsetNS)
	require.EqualValues(t, 100, m.RTTNS)
}

func TestProbeNonceMismatchDiscardsSample(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := transport.NewMockConn(ctrl)

	conn.EXPECT().SendDatagram(gomock.Any()).Return(nil)
	var stale [protocol.NonceSize]byte
	stale[0] = 0xFF
	conn.EXPECT().ReceiveDatagram(gomock.Any()).Return(protocol.EncodeResponse(stale, 1, 2), nil)

	p := NewProber(conn)
	_, err := p.Probe(context.Background())
	require.Error(t, err)
	var probeErr *ProbeError
	require.ErrorAs(t, err, &probeErr)
	require.Equal(t, KindNonceMismatch, probeErr.Kind)
}

func TestProbeDecodeErrorOnMalformedResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := transport.NewMockConn(ctrl)

	conn.EXPECT().SendDatagram(gomock.Any()).Return(nil)
	conn.EXPECT().ReceiveDatagram(gomock.Any()).Return([]byte{0x01, 0x02}, nil)

	p := NewProber(conn)
	_, err := p.Probe(context.Background())
	require.Error(t, err)
	var probeErr *ProbeError
	require.ErrorAs(t, err, &probeErr)
	require.Equal(t, KindDecodeError, probeErr.Kind)
}

func TestProbeNoResponseOnTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := transport.NewMockConn(ctrl)

	conn.EXPECT().SendDatagram(gomock.Any()).Return(nil)
	conn.EXPECT().ReceiveDatagram(gomock.Any()).Return(nil, context.DeadlineExceeded)
	conn.EXPECT().RemoteAddr().Return(fakeAddr("10.0.0.1:443")).AnyTimes()

	measurements := RunQueries(context.Background(), conn, 1, time.Millisecond)
	require.Empty(t, measurements)
}

var _ net.Addr = fakeAddr("")
