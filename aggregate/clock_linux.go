//go:build linux

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
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/facebook/tsq/clock"
)

type linuxClockAdjuster struct{}

func newPlatformClockAdjuster() ClockAdjuster {
	return linuxClockAdjuster{}
}

// Slew issues CLOCK_ADJTIME with ADJ_OFFSET|ADJ_MICRO, asking the kernel's
// PLL to steer the clock back into agreement gradually.
func (linuxClockAdjuster) Slew(offset time.Duration) error {
	if _, err := clock.AdjOffsetMicro(unix.CLOCK_REALTIME, offset); err != nil {
		return fmt.Errorf("clock_adjtime slew: %w", err)
	}
	return nil
}

// Step sets the wall clock immediately via CLOCK_ADJTIME with ADJ_SETOFFSET.
func (linuxClockAdjuster) Step(offset time.Duration) error {
	if _, err := clock.Step(unix.CLOCK_REALTIME, offset); err != nil {
		return fmt.Errorf("clock_adjtime step: %w", err)
	}
	return nil
}
