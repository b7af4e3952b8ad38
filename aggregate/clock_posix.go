//go:build unix && !linux

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
)

// posixClockAdjuster drives the generic POSIX adjtime(2)/settimeofday(2)
// pair, for UNIX-like platforms without Linux's CLOCK_ADJTIME interface.
type posixClockAdjuster struct{}

func newPlatformClockAdjuster() ClockAdjuster {
	return posixClockAdjuster{}
}

// Slew passes a {sec, usec} delta to adjtime(2), which the kernel applies
// gradually by skewing the clock's rate until the delta is consumed.
func (posixClockAdjuster) Slew(offset time.Duration) error {
	delta := durationToTimeval(offset)
	if err := unix.Adjtime(&delta, nil); err != nil {
		return fmt.Errorf("adjtime: %w", err)
	}
	return nil
}

// Step reads the current wall time, adds offset, and sets it directly.
func (posixClockAdjuster) Step(offset time.Duration) error {
	var tv unix.Timeval
	if err := unix.Gettimeofday(&tv); err != nil {
		return fmt.Errorf("gettimeofday: %w", err)
	}
	now := time.Unix(int64(tv.Sec), int64(tv.Usec)*1000)
	stepped := now.Add(offset)
	newTV := unix.NsecToTimeval(stepped.UnixNano())
	if err := unix.Settimeofday(&newTV); err != nil {
		return fmt.Errorf("settimeofday: %w", err)
	}
	return nil
}

// durationToTimeval normalizes offset into a {sec, usec} pair with usec
// always in [0, 10^6), carrying any remainder into sec — the normalization
// spec.md §9's open question requires for the step/slew syscall boundary.
// Built on NsecToTimeval so the field widths stay whatever the platform's
// unix.Timeval declares them as.
func durationToTimeval(offset time.Duration) unix.Timeval {
	return unix.NsecToTimeval(offset.Nanoseconds())
}
