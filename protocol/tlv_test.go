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

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTLVRoundTrip(t *testing.T) {
	var nonce [NonceSize]byte
	for i := range nonce {
		nonce[i] = byte(i)
	}
	req := EncodeRequest(nonce)
	require.Equal(t, RequestSize, len(req))
	require.True(t, ValidRequest(req))
	require.Equal(t, nonce, RequestNonce(req))
}

func TestValidRequestRejectsShortOrWrongType(t *testing.T) {
	// Scenario 3 from spec.md §8: 17 bytes, type=1 len=0x10 but truncated.
	short := append([]byte{TypeNonce, NonceSize}, make([]byte, 15)...)
	require.Len(t, short, 17)
	require.False(t, ValidRequest(short))

	// 18 bytes but wrong first TLV type.
	wrongType := append([]byte{TypeRecvTS, NonceSize}, make([]byte, 16)...)
	require.Len(t, wrongType, 18)
	require.False(t, ValidRequest(wrongType))
}

func TestValidRequestAcceptsWellFormed(t *testing.T) {
	var nonce [NonceSize]byte
	req := EncodeRequest(nonce)
	require.True(t, ValidRequest(req))
	require.Len(t, req, 18)
}

func TestEncodeResponseAndDecode(t *testing.T) {
	var nonce [NonceSize]byte
	copy(nonce[:], []byte("0123456789ABCDEF"))

	resp := EncodeResponse(nonce, 1000, 1100)
	require.Equal(t, ResponseSize, len(resp))
	require.Len(t, resp, 34)

	parsed, err := DecodeResponse(resp)
	require.NoError(t, err)
	require.Equal(t, nonce, parsed.Nonce)
	// NTP short timestamps only carry sub-second precision down to
	// 2^-32s, and both directions of the conversion truncate, so a whole
	// nanosecond value can come back 1ns low (1000 decodes as 999).
	require.InDelta(t, 1000, parsed.RecvNS, 1)
	require.InDelta(t, 1100, parsed.SendNS, 1)
}

func TestDecodeResponsePermissiveWithTrailingTLV(t *testing.T) {
	var nonce [NonceSize]byte
	resp := EncodeResponse(nonce, 2000, 2200)
	withTrailer, err := EncodeTLV(resp, 99, []byte("future"))
	require.NoError(t, err)

	truncated, err := DecodeResponse(resp)
	require.NoError(t, err)
	withExtra, err := DecodeResponse(withTrailer)
	require.NoError(t, err)

	require.Equal(t, truncated, withExtra)
}

func TestDecodeResponseMissingTimestampFails(t *testing.T) {
	var nonce [NonceSize]byte
	buf := make([]byte, 0)
	buf, _ = EncodeTLV(buf, TypeNonce, nonce[:])
	_, err := DecodeResponse(buf)
	require.Error(t, err)
}

func TestDecodeTLVsNeverPanicsOnGarbage(t *testing.T) {
	garbage := [][]byte{
		nil,
		{},
		{0x01},
		{0x01, 0xFF},
		{0x01, 0x02, 0x00},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	for _, g := range garbage {
		require.NotPanics(t, func() {
			tlvs := DecodeTLVs(g)
			require.LessOrEqual(t, len(tlvs)*0, len(g)) // trivially true; guards against panics only
		})
	}
}

func TestPatchSendTimestamp(t *testing.T) {
	var nonce [NonceSize]byte
	resp := EncodeResponse(nonce, 500, 0)
	PatchSendTimestamp(resp, 700)
	parsed, err := DecodeResponse(resp)
	require.NoError(t, err)
	require.InDelta(t, 700, parsed.SendNS, 1)
	require.InDelta(t, 500, parsed.RecvNS, 1)
}
