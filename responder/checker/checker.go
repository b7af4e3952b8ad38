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
Package checker implements a health check for the TSQ responder: it records
whether the accept-loop goroutine is running and reports a failure from
Check once it has stopped. Check runs on demand (it is polled by the
responder's /health handler); it does not run periodically, does not look at
the live connection count, and does not exit the process.
*/
package checker

import (
	"errors"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

var errListenerDown = errors.New("listener goroutine is not running")

// SimpleChecker tracks whether the single accept-loop goroutine is alive.
type SimpleChecker struct {
	listenerUp int32
}

// MarkListening records that the accept loop has started.
func (s *SimpleChecker) MarkListening() {
	atomic.StoreInt32(&s.listenerUp, 1)
}

// MarkStopped records that the accept loop has exited.
func (s *SimpleChecker) MarkStopped() {
	atomic.StoreInt32(&s.listenerUp, 0)
}

// Check reports an error if the accept loop isn't marked as running.
func (s *SimpleChecker) Check() error {
	log.Debug("[checker] checking listener liveness")
	if atomic.LoadInt32(&s.listenerUp) == 0 {
		return errListenerDown
	}
	return nil
}
