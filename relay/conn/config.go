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
package conn

import (
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/relayr/relayr/utils/memsize"
)

// Config is the configuration for individual live connections.
type Config struct {

	// QueueSize is the capacity of the outbound frame queue. A full queue
	// blocks producers; it never drops frames.
	QueueSize int `yaml:"queue_size"`

	// PingInterval is how often the heartbeat loop pings the client.
	PingInterval time.Duration `yaml:"ping_interval"`

	// ClientTimeout is how long the client may go without answering a ping
	// before the connection is torn down.
	ClientTimeout time.Duration `yaml:"client_timeout"`

	// WriteTimeout bounds a single frame write on the socket.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxFrameSize caps the size of a single inbound message.
	MaxFrameSize datasize.ByteSize `yaml:"max_frame_size"`

	// EgressBitsPerSec throttles binary frame egress per connection.
	EgressBitsPerSec uint64 `yaml:"egress_bits_per_sec"`

	DisableThrottling bool `yaml:"disable_throttling"`
}

func (c Config) applyDefaults() Config {
	if c.QueueSize == 0 {
		c.QueueSize = 100
	}
	if c.PingInterval == 0 {
		c.PingInterval = 5 * time.Second
	}
	if c.ClientTimeout == 0 {
		c.ClientTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = 64 * datasize.MB
	}
	if c.EgressBitsPerSec == 0 {
		c.EgressBitsPerSec = 8 * 100 * memsize.MB // 100 MB/s
	}
	return c
}
