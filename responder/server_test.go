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
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/facebook/tsq/protocol"
	"github.com/facebook/tsq/responder/stats"
	"github.com/facebook/tsq/transport"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "quic" }
func (a fakeAddr) String() string  { return string(a) }

var _ net.Addr = fakeAddr("")

func TestServeRequestScenario3WellFormed(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := transport.NewMockConn(ctrl)

	var sent []byte
	conn.EXPECT().SendDatagram(gomock.Any()).DoAndReturn(func(data []byte) error {
		sent = append([]byte{}, data...)
		return nil
	})

	var nonce [protocol.NonceSize]byte
	copy(nonce[:], []byte("0123456789ABCDEF"))
	req := protocol.EncodeRequest(nonce)
	require.Len(t, req, 18)

	s := &Server{Stats: &stats.JSONStats{}}
	s.serveRequest("client:1", conn, req, 1000)

	require.Len(t, sent, protocol.ResponseSize)
	parsed, err := protocol.DecodeResponse(sent)
	require.NoError(t, err)
	require.Equal(t, nonce, parsed.Nonce)
}

func TestServeRequestLogsOnVersionMismatchButStillResponds(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := transport.NewMockConn(ctrl)

	var sent []byte
	conn.EXPECT().SendDatagram(gomock.Any()).DoAndReturn(func(data []byte) error {
		sent = append([]byte{}, data...)
		return nil
	})

	var nonce [protocol.NonceSize]byte
	copy(nonce[:], []byte("0123456789ABCDEF"))
	req := protocol.EncodeRequestWithVersion(nonce, "2.0.0")

	s := &Server{Stats: &stats.JSONStats{}}
	s.serveRequest("client:1", conn, req, 1000)

	require.Len(t, sent, protocol.ResponseSize)
	parsed, err := protocol.DecodeResponse(sent)
	require.NoError(t, err)
	require.Equal(t, nonce, parsed.Nonce)
}

func TestServeRequestScenario3TruncatedDropsWithNoResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := transport.NewMockConn(ctrl)
	// SendDatagram must never be called for a malformed request.

	st := &stats.JSONStats{}
	s := &Server{Stats: st}
	short := append([]byte{protocol.TypeNonce, protocol.NonceSize}, make([]byte, 15)...)
	require.Len(t, short, 17)
	s.serveRequest("client:1", conn, short, 1000)
}

func TestServeRequestScenario3WrongTypeDropsWithNoResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := transport.NewMockConn(ctrl)

	st := &stats.JSONStats{}
	s := &Server{Stats: st}
	wrongType := append([]byte{protocol.TypeRecvTS, protocol.NonceSize}, make([]byte, 16)...)
	require.Len(t, wrongType, 18)
	s.serveRequest("client:1", conn, wrongType, 1000)
}
