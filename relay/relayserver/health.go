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
	"encoding/json"
	"net/http"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"

	"github.com/relayr/relayr/utils/handler"
	"github.com/relayr/relayr/utils/log"
)

type memoryStatus struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
}

type diskStatus struct {
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

type healthStatus struct {
	Status      string       `json:"status"`
	Environment string       `json:"environment"`
	Uptime      string       `json:"uptime"`
	Goroutines  int          `json:"goroutines"`
	CPUPercent  float64      `json:"cpu_percent"`
	Memory      memoryStatus `json:"memory"`
	Disk        diskStatus   `json:"disk"`
}

// healthHandler reports process and host health. Host stats are best effort,
// a probe failure downgrades the field instead of failing the endpoint.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) error {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "production"
	}

	status := healthStatus{
		Status:      "ok",
		Environment: env,
		Uptime:      s.clk.Now().Sub(s.startedAt).String(),
		Goroutines:  runtime.NumGoroutine(),
	}

	if percents, err := cpu.Percent(0, false); err != nil {
		log.Warnf("Error probing cpu: %s", err)
	} else if len(percents) > 0 {
		status.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		log.Warnf("Error probing memory: %s", err)
	} else {
		status.Memory = memoryStatus{
			Total:       vm.Total,
			Available:   vm.Available,
			UsedPercent: vm.UsedPercent,
		}
	}

	if du, err := disk.Usage("/"); err != nil {
		log.Warnf("Error probing disk: %s", err)
	} else {
		status.Disk = diskStatus{
			Total:       du.Total,
			Free:        du.Free,
			UsedPercent: du.UsedPercent,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		return handler.Errorf("json encode: %s", err)
	}
	return nil
}
