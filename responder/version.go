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

package responder

import (
	"fmt"

	version "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/tsq/protocol"
)

// CheckProtocolVersion compares a peer's advertised protocol version (sent
// as an optional trailing TLV on its request, see protocol.RequestVersion)
// against ours, logging a warning on mismatch. Future TSQ revisions can use
// the comparison result to gate behavior without writing a second version
// parser.
func CheckProtocolVersion(peerVersion string) error {
	ours, err := version.NewVersion(protocol.ProtocolVersion)
	if err != nil {
		return fmt.Errorf("parsing local protocol version: %w", err)
	}
	theirs, err := version.NewVersion(peerVersion)
	if err != nil {
		return fmt.Errorf("parsing peer protocol version %q: %w", peerVersion, err)
	}
	if !theirs.Equal(ours) {
		log.Warnf("peer negotiated protocol version %s, we are %s", theirs, ours)
	}
	return nil
}
