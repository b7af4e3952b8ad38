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
Package protocol implements the TSQ wire format: an NTP short-timestamp
codec and the TLV framing that carries it.
*/
package protocol

import "encoding/binary"

// NTPEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01T00:00:00Z) and the Unix epoch (1970-01-01T00:00:00Z).
const NTPEpochOffset = int64(2208988800)

const nsPerSecond = int64(1_000_000_000)

// twoPow32 is 2^32, used to scale fractional seconds.
const twoPow32 = int64(1) << 32

// EncodeNTPTimestamp converts a Unix-epoch nanosecond timestamp into the
// 8-byte NTP short-timestamp wire format: a big-endian 32-bit seconds field
// (since 1900) followed by a big-endian 32-bit fractional-seconds field,
// where the fraction represents frac/2^32 of a second.
func EncodeNTPTimestamp(unixNanos uint64) [8]byte {
	ns := int64(unixNanos)
	sec := ns / nsPerSecond
	nanos := ns % nsPerSecond

	ntpSec := uint32(sec + NTPEpochOffset)
	// frac = nanos * 2^32 / 10^9, done in integer math to avoid the
	// precision loss a float64 multiply would introduce.
	frac := uint32((nanos * twoPow32) / nsPerSecond)

	var out [8]byte
	binary.BigEndian.PutUint32(out[0:4], ntpSec)
	binary.BigEndian.PutUint32(out[4:8], frac)
	return out
}

// DecodeNTPTimestamp is the inverse of EncodeNTPTimestamp.
func DecodeNTPTimestamp(b [8]byte) uint64 {
	ntpSec := binary.BigEndian.Uint32(b[0:4])
	frac := binary.BigEndian.Uint32(b[4:8])

	sec := int64(ntpSec) - NTPEpochOffset
	nanos := (int64(frac) * nsPerSecond) / twoPow32

	return uint64(sec*nsPerSecond + nanos)
}
