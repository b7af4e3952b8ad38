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
Package aggregate reduces a set of probe.Measurement samples from one or
more servers into a single offset/RTT/stdev summary, and drives the
platform-appropriate OS clock adjustment from that summary.
*/
package aggregate

import (
	"errors"
	"math"
	"sort"

	"github.com/eclesh/welford"

	"github.com/facebook/tsq/probe"
)

// ErrNoMeasurements is returned when an aggregation is attempted over zero
// samples (spec.md §7's NoMeasurements: fatal for the sync run).
var ErrNoMeasurements = errors.New("no measurements available")

// Summary is the result of reducing a sample set: the median offset and RTT
// in nanoseconds, plus the population standard deviation of the offsets
// reported for operator visibility only.
type Summary struct {
	MedianOffsetNS int64
	MedianRTTNS    int64
	MeanOffsetNS   float64
	StdevOffsetNS  float64
	N              int
}

// FilterByRTT drops samples whose RTT exceeds maxRTTNS. A non-positive
// maxRTTNS disables filtering, per the optional "filters by RTT if desired"
// wording in spec.md §4.4.
func FilterByRTT(samples []probe.Measurement, maxRTTNS int64) []probe.Measurement {
	if maxRTTNS <= 0 {
		return samples
	}
	out := make([]probe.Measurement, 0, len(samples))
	for _, s := range samples {
		if s.RTTNS <= maxRTTNS {
			out = append(out, s)
		}
	}
	return out
}

// Aggregate reduces samples to a Summary via median offset/RTT and
// mean/stdev of the offsets (spec.md §4.4). It requires at least one
// sample.
func Aggregate(samples []probe.Measurement) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, ErrNoMeasurements
	}

	offsets := make([]int64, len(samples))
	rtts := make([]int64, len(samples))
	w := welford.New()
	for i, s := range samples {
		offsets[i] = s.OffsetNS
		rtts[i] = s.RTTNS
		w.Add(float64(s.OffsetNS))
	}

	// population standard deviation (divide by N, not N-1)
	mean := w.Mean()
	var sumSq float64
	for _, o := range offsets {
		d := float64(o) - mean
		sumSq += d * d
	}

	return Summary{
		MedianOffsetNS: medianInt64(offsets),
		MedianRTTNS:    medianInt64(rtts),
		MeanOffsetNS:   mean,
		StdevOffsetNS:  math.Sqrt(sumSq / float64(len(samples))),
		N:              len(samples),
	}, nil
}

// medianInt64 sorts a copy of values and returns the median: the middle
// element for odd N, the mean of the two central elements for even N. The
// invariant median(S) ∈ [min(S), max(S)] holds by construction since the
// median is always a convex combination of at most two elements of the
// sorted set.
func medianInt64(values []int64) int64 {
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	a, b := sorted[n/2-1], sorted[n/2]
	// mean of two int64s without overflow for the values this system deals in
	return a + (b-a)/2
}
