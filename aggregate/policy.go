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
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrOffsetTooLarge means |median offset| exceeded Policy.MaxAllowedOffset;
// no clock change is attempted.
var ErrOffsetTooLarge = errors.New("offset too large")

// ErrPermissionDenied means a non-dry-run adjustment was attempted without
// root privileges.
var ErrPermissionDenied = errors.New("adjusting the clock requires root")

// Policy is the part of the clock-adjust configuration from spec.md §3 that
// Decide uses: max-allowed-offset, slew-threshold and dry-run. The port,
// queries per server and verbose options live on the CLI layer instead.
type Policy struct {
	MaxAllowedOffset time.Duration
	SlewThreshold    time.Duration
	DryRun           bool
}

// geteuid is overridable in tests.
var geteuid = os.Geteuid

// Decide applies the clock-adjust policy to a Summary: gates on
// MaxAllowedOffset, then either logs the intended adjustment (dry-run),
// slews (|offset| <= SlewThreshold), or steps (otherwise), using adjuster
// to perform the actual OS call.
func Decide(policy Policy, summary Summary, adjuster ClockAdjuster) error {
	offset := time.Duration(summary.MedianOffsetNS)

	if abs(offset) > policy.MaxAllowedOffset {
		return fmt.Errorf("%w: %s exceeds max allowed %s", ErrOffsetTooLarge, offset, policy.MaxAllowedOffset)
	}

	if policy.DryRun {
		log.Infof("dry-run: would adjust clock by %s (stdev %.1fus, %d samples)", offset, summary.StdevOffsetNS/1000, summary.N)
		return nil
	}

	if geteuid() != 0 {
		return ErrPermissionDenied
	}

	if abs(offset) <= policy.SlewThreshold {
		log.Infof("slewing clock by %s", offset)
		if err := adjuster.Slew(offset); err != nil {
			return fmt.Errorf("slew failed: %w", err)
		}
		return nil
	}

	log.Infof("stepping clock by %s", offset)
	if err := adjuster.Step(offset); err != nil {
		return fmt.Errorf("step failed: %w", err)
	}
	return nil
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
