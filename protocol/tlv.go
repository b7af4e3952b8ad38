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

import "fmt"

// TLV types defined by the protocol.
const (
	TypeNonce   uint8 = 1
	TypeRecvTS  uint8 = 2
	TypeSendTS  uint8 = 3
	TypeVersion uint8 = 4
)

// ProtocolVersion is the version a TSQ client advertises in an optional
// trailing version TLV on its request; the responder logs, but does not
// reject, a mismatch (spec.md's wire format is forward-compatible with
// unknown trailing TLVs).
const ProtocolVersion = "1.0.0"

// NonceSize is the fixed length, in bytes, of the nonce TLV value.
const NonceSize = 16

// TimestampSize is the fixed length, in bytes, of an NTP short-timestamp
// TLV value.
const TimestampSize = 8

// RequestSize is the total wire size of a well-formed TSQ request:
// one TLV header (2 bytes) plus a 16-byte nonce value.
const RequestSize = 2 + NonceSize

// ResponseSize is the total wire size of a well-formed TSQ response: the
// echoed nonce TLV plus two 8-byte timestamp TLVs.
const ResponseSize = (2 + NonceSize) + (2 + TimestampSize) + (2 + TimestampSize)

// TLV is a single type-length-value record.
type TLV struct {
	Type  uint8
	Value []byte
}

// EncodeTLV appends the wire encoding of a single TLV to dst and returns
// the extended slice. Length is taken from len(value); a value longer than
// a single byte's range (>255) is rejected with an error.
func EncodeTLV(dst []byte, typ uint8, value []byte) ([]byte, error) {
	if len(value) > 255 {
		return nil, fmt.Errorf("tlv value too long: %d bytes", len(value))
	}
	dst = append(dst, typ, uint8(len(value)))
	dst = append(dst, value...)
	return dst, nil
}

// DecodeTLVs parses a stream of TLVs out of data permissively: malformed
// trailing bytes (a header that straddles the end of input, or a length
// that overruns the buffer) are dropped silently and whatever TLVs parsed
// cleanly up to that point are returned. DecodeTLVs never reads past
// len(data) and always terminates.
func DecodeTLVs(data []byte) []TLV {
	var out []TLV
	offset := 0
	for offset+2 <= len(data) {
		typ := data[offset]
		length := int(data[offset+1])
		if offset+2+length > len(data) {
			break
		}
		value := data[offset+2 : offset+2+length]
		out = append(out, TLV{Type: typ, Value: value})
		offset += 2 + length
	}
	return out
}

// FindTLV returns the value of the first TLV of the given type, or nil and
// false if none is present.
func FindTLV(tlvs []TLV, typ uint8) ([]byte, bool) {
	for _, t := range tlvs {
		if t.Type == typ {
			return t.Value, true
		}
	}
	return nil, false
}

// EncodeRequest builds a TSQ request: a single nonce TLV.
func EncodeRequest(nonce [NonceSize]byte) []byte {
	buf := make([]byte, 0, RequestSize)
	buf, _ = EncodeTLV(buf, TypeNonce, nonce[:])
	return buf
}

// EncodeRequestWithVersion builds a TSQ request carrying the client's
// advertised protocol version as an optional trailing TLV, after the
// required nonce TLV. Older responders that don't look past the nonce TLV
// still see a valid request, per the wire format's forward-compatibility
// rule.
func EncodeRequestWithVersion(nonce [NonceSize]byte, version string) []byte {
	buf := EncodeRequest(nonce)
	buf, _ = EncodeTLV(buf, TypeVersion, []byte(version))
	return buf
}

// RequestVersion extracts the advertised version TLV from a request, if
// present.
func RequestVersion(data []byte) (string, bool) {
	tlvs := DecodeTLVs(data)
	v, ok := FindTLV(tlvs, TypeVersion)
	if !ok {
		return "", false
	}
	return string(v), true
}

// ValidRequest reports whether data is a well-formed TSQ request: at least
// RequestSize bytes, with the first TLV being a 16-byte nonce.
func ValidRequest(data []byte) bool {
	return len(data) >= RequestSize && data[0] == TypeNonce && data[1] == NonceSize
}

// RequestNonce extracts the nonce from a request that has already passed
// ValidRequest.
func RequestNonce(data []byte) [NonceSize]byte {
	var nonce [NonceSize]byte
	copy(nonce[:], data[2:2+NonceSize])
	return nonce
}

// EncodeResponse builds a TSQ response: the echoed nonce, the receive
// timestamp (T2) and the send timestamp (T3), in that order.
func EncodeResponse(nonce [NonceSize]byte, recvNS, sendNS uint64) []byte {
	buf := make([]byte, 0, ResponseSize)
	buf, _ = EncodeTLV(buf, TypeNonce, nonce[:])
	recvTS := EncodeNTPTimestamp(recvNS)
	buf, _ = EncodeTLV(buf, TypeRecvTS, recvTS[:])
	sendTS := EncodeNTPTimestamp(sendNS)
	buf, _ = EncodeTLV(buf, TypeSendTS, sendTS[:])
	return buf
}

// PatchSendTimestamp overwrites the send-timestamp (T3) TLV's value
// in-place in a buffer previously produced by EncodeResponse. This lets a
// responder reserve the response bytes ahead of time and patch in the T3
// value immediately before handing the datagram to the transport, keeping
// no work between the T3 capture and the send call.
func PatchSendTimestamp(buf []byte, sendNS uint64) {
	// nonce TLV: 2 + NonceSize bytes; recv-ts TLV: 2 + TimestampSize bytes.
	offset := (2 + NonceSize) + (2 + TimestampSize) + 2
	ts := EncodeNTPTimestamp(sendNS)
	copy(buf[offset:offset+TimestampSize], ts[:])
}

// ParsedResponse holds the fields extracted from a decoded TSQ response.
type ParsedResponse struct {
	Nonce  [NonceSize]byte
	RecvNS uint64 // T2
	SendNS uint64 // T3
}

// DecodeResponse parses a TSQ response. It requires TLVs of type
// TypeRecvTS and TypeSendTS, each exactly TimestampSize bytes; the nonce
// TLV, if present, is also returned. Extra trailing TLVs of unknown type
// are ignored, matching the wire format's forward-compatibility rule.
func DecodeResponse(data []byte) (*ParsedResponse, error) {
	tlvs := DecodeTLVs(data)

	out := &ParsedResponse{}

	if nonce, ok := FindTLV(tlvs, TypeNonce); ok && len(nonce) == NonceSize {
		copy(out.Nonce[:], nonce)
	}

	recv, ok := FindTLV(tlvs, TypeRecvTS)
	if !ok || len(recv) != TimestampSize {
		return nil, fmt.Errorf("missing or malformed receive-timestamp TLV")
	}
	var recvBuf [8]byte
	copy(recvBuf[:], recv)
	out.RecvNS = DecodeNTPTimestamp(recvBuf)

	send, ok := FindTLV(tlvs, TypeSendTS)
	if !ok || len(send) != TimestampSize {
		return nil, fmt.Errorf("missing or malformed send-timestamp TLV")
	}
	var sendBuf [8]byte
	copy(sendBuf[:], send)
	out.SendNS = DecodeNTPTimestamp(sendBuf)

	return out, nil
}
