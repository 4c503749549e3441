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
package metrics

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/relayr/relayr/utils/log"

	"github.com/uber-go/tally"
)

type backendFactory func(config Config, cluster string) (tally.Scope, io.Closer, error)

var _backends = make(map[string]backendFactory)

func registerBackend(name string, f backendFactory) {
	if _, ok := _backends[name]; ok {
		log.Fatalf("Metrics backend %q registered twice", name)
	}
	_backends[name] = f
}

func init() {
	registerBackend("statsd", newStatsdScope)
	registerBackend("disabled", newDisabledScope)
	registerBackend("default", newDefaultScope)
	registerBackend("m3", newM3Scope)
}

// New creates a tally scope for the configured backend. An empty backend
// disables metrics.
func New(config Config, cluster string) (tally.Scope, io.Closer, error) {
	name := config.Backend
	if name == "" {
		name = "disabled"
	}
	f, ok := _backends[name]
	if !ok {
		return nil, nil, fmt.Errorf("metrics backend %q not registered", name)
	}
	return f(config, cluster)
}

// EmitVersion emits the build version tagged with hostname once a minute, so
// dashboards can tell which hosts run which build. Blocks forever.
func EmitVersion(stats tally.Scope) {
	version, err := versionCounter(stats)
	if err != nil {
		log.Warnf("Skipping version emitting: %s", err)
		return
	}
	for range time.Tick(time.Minute) {
		version.Inc(1)
	}
}

func versionCounter(stats tally.Scope) (tally.Counter, error) {
	version := os.Getenv("GIT_DESCRIBE")
	if version == "" {
		return nil, errors.New("no GIT_DESCRIBE env variable found")
	}
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %s", err)
	}
	return stats.Tagged(map[string]string{
		"host":    hostname,
		"version": version,
	}).Counter("version"), nil
}
