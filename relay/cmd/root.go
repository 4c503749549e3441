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
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/andres-erbsen/clock"
	"github.com/spf13/cobra"

	"github.com/relayr/relayr/lib/tracing"
	"github.com/relayr/relayr/metrics"
	"github.com/relayr/relayr/relay/dispatch"
	"github.com/relayr/relayr/relay/peerstore"
	"github.com/relayr/relayr/relay/relayserver"
	"github.com/relayr/relayr/utils/configutil"
	"github.com/relayr/relayr/utils/log"
)

func init() {
	rootCmd.PersistentFlags().IntVarP(
		&port, "port", "", 0, "port to listen on")
	rootCmd.PersistentFlags().StringVarP(
		&configFile, "config", "", "", "configuration file path")
	rootCmd.PersistentFlags().StringVarP(
		&cluster, "cluster", "", "", "cluster name (e.g. prod01-zone1)")
}

var (
	port       int
	configFile string
	cluster    string

	rootCmd = &cobra.Command{
		Short: "relayr pairs file-transfer peers and forwards their signalling " +
			"and data frames over websockets.",
		Run: func(rootCmd *cobra.Command, args []string) {
			run()
		},
	}
)

// Execute runs the relay.
func Execute() {
	rootCmd.Execute()
}

func run() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "production"
	}

	var config Config
	if configFile != "" {
		if err := configutil.Load(configFile, &config); err != nil {
			panic(err)
		}
	}
	config = config.applyDefaults(env)

	zlog := log.ConfigureLogger(config.ZapLogging)
	defer zlog.Sync()

	log.Infof("Starting relay in %s environment", env)

	stats, closer, err := metrics.New(config.Metrics, cluster)
	if err != nil {
		log.Fatalf("Failed to init metrics: %s", err)
	}
	defer closer.Close()

	go metrics.EmitVersion(stats)

	shutdown, err := tracing.InitProvider(context.Background(), config.Tracing)
	if err != nil {
		log.Fatalf("Failed to init tracing: %s", err)
	}
	defer shutdown(context.Background())

	// The port flag wins over the PORT environment variable, which wins over
	// the configured listener address.
	if port == 0 {
		if v := os.Getenv("PORT"); v != "" {
			port, err = strconv.Atoi(v)
			if err != nil {
				log.Fatalf("Error parsing PORT environment variable: %s", err)
			}
		}
	}
	if port != 0 {
		config.RelayServer.Listener.Addr = fmt.Sprintf(":%d", port)
	}
	if config.RelayServer.Listener.Addr == "" {
		config.RelayServer.Listener.Addr = ":8080"
	}

	clk := clock.New()

	store := peerstore.New(stats)
	dispatcher := dispatch.New(stats, clk, store)
	server := relayserver.New(config.RelayServer, stats, clk, store, dispatcher)

	log.Fatal(server.ListenAndServe())
}
