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

package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/tsq/probe"
)

func msSamples(msValues ...int64) []probe.Measurement {
	out := make([]probe.Measurement, len(msValues))
	for i, ms := range msValues {
		out[i] = probe.Measurement{OffsetNS: ms * int64(time.Millisecond)}
	}
	return out
}

func TestAggregateScenario4(t *testing.T) {
	// Scenario 4 from spec.md §8: samples (ms) = [120, 130, 125, 128, 122].
	samples := msSamples(120, 130, 125, 128, 122)
	summary, err := Aggregate(samples)
	require.NoError(t, err)
	require.EqualValues(t, 125*int64(time.Millisecond), summary.MedianOffsetNS)
	require.InDelta(t, 3.6, summary.StdevOffsetNS/float64(time.Millisecond), 0.1)
}

func TestAggregateMedianWithinRange(t *testing.T) {
	samples := msSamples(-50, 10, 30, 5, 1000)
	summary, err := Aggregate(samples)
	require.NoError(t, err)
	require.GreaterOrEqual(t, summary.MedianOffsetNS, int64(-50*time.Millisecond))
	require.LessOrEqual(t, summary.MedianOffsetNS, int64(1000*time.Millisecond))
}

func TestAggregateSingleSampleIsMedian(t *testing.T) {
	samples := msSamples(42)
	summary, err := Aggregate(samples)
	require.NoError(t, err)
	require.EqualValues(t, 42*int64(time.Millisecond), summary.MedianOffsetNS)
}

func TestAggregateNoMeasurements(t *testing.T) {
	_, err := Aggregate(nil)
	require.ErrorIs(t, err, ErrNoMeasurements)
}

func TestFilterByRTT(t *testing.T) {
	samples := []probe.Measurement{
		{OffsetNS: 1, RTTNS: int64(10 * time.Millisecond)},
		{OffsetNS: 2, RTTNS: int64(200 * time.Millisecond)},
	}
	filtered := FilterByRTT(samples, int64(50*time.Millisecond))
	require.Len(t, filtered, 1)
	require.EqualValues(t, 1, filtered[0].OffsetNS)
}

type fakeAdjuster struct {
	slewed, stepped time.Duration
	slewCalled      bool
	stepCalled      bool
}

func (f *fakeAdjuster) Slew(d time.Duration) error { f.slewCalled = true; f.slewed = d; return nil }
func (f *fakeAdjuster) Step(d time.Duration) error { f.stepCalled = true; f.stepped = d; return nil }

func TestDecideScenario4SlewBranch(t *testing.T) {
	geteuid = func() int { return 0 }
	defer func() { geteuid = func() int { return -1 } }()

	summary, err := Aggregate(msSamples(120, 130, 125, 128, 122))
	require.NoError(t, err)

	policy := Policy{MaxAllowedOffset: 500 * time.Millisecond, SlewThreshold: 500 * time.Millisecond}
	adjuster := &fakeAdjuster{}
	err = Decide(policy, summary, adjuster)
	require.NoError(t, err)
	require.True(t, adjuster.slewCalled)
	require.False(t, adjuster.stepCalled)
}

func TestDecideScenario5OffsetTooLarge(t *testing.T) {
	// Scenario 5 from spec.md §8: max-offset=100ms, samples=[200,250,180].
	summary, err := Aggregate(msSamples(200, 250, 180))
	require.NoError(t, err)
	require.EqualValues(t, 200*int64(time.Millisecond), summary.MedianOffsetNS)

	policy := Policy{MaxAllowedOffset: 100 * time.Millisecond, SlewThreshold: 500 * time.Millisecond}
	err = Decide(policy, summary, &fakeAdjuster{})
	require.ErrorIs(t, err, ErrOffsetTooLarge)
}

func TestDecideScenario6DryRun(t *testing.T) {
	summary, err := Aggregate(msSamples(50, 60, 55))
	require.NoError(t, err)

	policy := Policy{MaxAllowedOffset: time.Second, SlewThreshold: 500 * time.Millisecond, DryRun: true}
	adjuster := &fakeAdjuster{}
	err = Decide(policy, summary, adjuster)
	require.NoError(t, err)
	require.False(t, adjuster.slewCalled)
	require.False(t, adjuster.stepCalled)
}

func TestDecidePermissionDenied(t *testing.T) {
	geteuid = func() int { return 1000 }
	defer func() { geteuid = func() int { return -1 } }()

	summary, err := Aggregate(msSamples(50, 60, 55))
	require.NoError(t, err)

	policy := Policy{MaxAllowedOffset: time.Second, SlewThreshold: 500 * time.Millisecond}
	err = Decide(policy, summary, &fakeAdjuster{})
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDecideStepBranchForLargeOffset(t *testing.T) {
	geteuid = func() int { return 0 }
	defer func() { geteuid = func() int { return -1 } }()

	summary, err := Aggregate(msSamples(800, 850, 820))
	require.NoError(t, err)

	policy := Policy{MaxAllowedOffset: time.Second, SlewThreshold: 500 * time.Millisecond}
	adjuster := &fakeAdjuster{}
	err = Decide(policy, summary, adjuster)
	require.NoError(t, err)
	require.True(t, adjuster.stepCalled)
	require.False(t, adjuster.slewCalled)
}
