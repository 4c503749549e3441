// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package relayserver

import (
	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"

	"github.com/relayr/relayr/relay/conn"
	"github.com/relayr/relayr/relay/dispatch"
	"github.com/relayr/relayr/relay/peerstore"
)

// Fixture is a test utility which returns a relay server wired to an
// in-memory peer store, plus the store for state assertions.
func Fixture() (*Server, *peerstore.Store) {
	clk := clock.New()
	store := peerstore.Fixture()
	d := dispatch.New(tally.NoopScope, clk, store)
	config := Config{Conn: conn.ConfigFixture()}
	return New(config, tally.NoopScope, clk, store, d), store
}
