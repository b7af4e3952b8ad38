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

func TestEncodeNTPTimestampScenario(t *testing.T) {
	// Scenario 1 from spec.md §8: ns = 1_700_000_000_000_000_000.
	ns := uint64(1_700_000_000_000_000_000)
	got := EncodeNTPTimestamp(ns)
	// seconds = 1700000000 + 2208988800 = 3908988800 = 0xE8FE6F80.
	want := [8]byte{0xE8, 0xFE, 0x6F, 0x80, 0x00, 0x00, 0x00, 0x00}
	require.Equal(t, want, got)
}

func TestNTPTimestampRoundTrip(t *testing.T) {
	cases := []uint64{
		0,
		1,
		1_700_000_000_000_000_000,
		1,
		123_456_789,
		999_999_999,
		1<<63 - 1,
	}
	for _, ns := range cases {
		encoded := EncodeNTPTimestamp(ns)
		decoded := DecodeNTPTimestamp(encoded)
		diff := int64(decoded) - int64(ns)
		if diff < 0 {
			diff = -diff
		}
		require.LessOrEqualf(t, diff, int64(1), "round trip of %d drifted by %dns", ns, diff)
	}
}

func TestDecodeNTPTimestampScenario(t *testing.T) {
	b := [8]byte{0xE8, 0xFE, 0x6F, 0x80, 0x00, 0x00, 0x00, 0x00}
	require.Equal(t, uint64(1_700_000_000_000_000_000), DecodeNTPTimestamp(b))
}
