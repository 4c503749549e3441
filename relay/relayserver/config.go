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
	"github.com/relayr/relayr/relay/conn"
	"github.com/relayr/relayr/utils/listener"
)

// Config defines Server configuration.
type Config struct {
	Listener listener.Config `yaml:"listener"`

	// Buffer sizes handed to the websocket upgrader. Zero values let
	// gorilla pick its defaults.
	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`

	Conn conn.Config `yaml:"conn"`
}
