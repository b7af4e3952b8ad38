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
	"time"
)

// ErrUnsupportedPlatform is returned by Slew/Step on platforms with no
// clock-adjustment backend wired in (spec.md §4.4's UnsupportedPlatform).
var ErrUnsupportedPlatform = errors.New("clock adjustment unsupported on this platform")

// ClockAdjuster applies a clock offset to the local system clock, either
// gradually (Slew) or immediately (Step). Exactly one implementation is
// compiled in per platform: a Linux build tag, a POSIX (other unix) build
// tag, and an unsupported-platform fallback — per the "tag a variant at the
// policy layer" design note in spec.md §9.
type ClockAdjuster interface {
	Slew(offset time.Duration) error
	Step(offset time.Duration) error
}

// NewClockAdjuster returns the platform-appropriate ClockAdjuster.
func NewClockAdjuster() ClockAdjuster {
	return newPlatformClockAdjuster()
}
